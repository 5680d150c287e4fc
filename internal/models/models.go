package models

import (
	"github.com/google/uuid"
)

type ConnectReq struct {
	Key      string    `json:"key"`
	Password string    `json:"password"`
	RunId    uuid.UUID `json:"run_id"`
}

type Hud struct {
	Lines []string `json:"lines"`
}

// NavState is a snapshot of the last navigation cycle.
type NavState struct {
	RunId     uuid.UUID `json:"run_id"`
	Mode      string    `json:"mode"`
	TargetX   float64   `json:"target_x"`
	TargetY   float64   `json:"target_y"`
	DX        float64   `json:"dx"`
	DY        float64   `json:"dy"`
	VX        float64   `json:"vx"`
	VY        float64   `json:"vy"`
	Distance  float64   `json:"distance"`
	Sensors   []float64 `json:"sensors"`
	Fired     []string  `json:"fired"`
	Reached   bool      `json:"reached"`
	TimeStamp int64     `json:"time_stamp"`
}

type Healthy struct {
	RunId     uuid.UUID `json:"run_id"`
	Cycles    uint64    `json:"cycles"`
	TimeStamp int64     `json:"time_stamp"`
}

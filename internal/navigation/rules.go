package navigation

import (
	"github.com/Speshl/gorrc_nav/internal/fuzzy"
)

const (
	GoalRuleBase     = "goal"
	ObstacleRuleBase = "obstacle"
)

func is(s Sensor, term string) fuzzy.Expr {
	return fuzzy.Is(s.String(), term)
}

func vx(term string) fuzzy.Assignment { return fuzzy.Then(VelocityX, term) }
func vy(term string) fuzzy.Assignment { return fuzzy.Then(VelocityY, term) }

// GoalRules maps each axis offset to a velocity on the same axis. No rule
// couples the axes; AdjustSpeeds coordinates them afterwards.
func GoalRules() []fuzzy.Rule {
	return []fuzzy.Rule{
		{Name: "x_far_back", If: fuzzy.Is(PositionX, FarBack), Then: []fuzzy.Assignment{vx(Fast(Backward))}},
		{Name: "x_near_back", If: fuzzy.Is(PositionX, NearBack), Then: []fuzzy.Assignment{vx(Slow(Backward))}},
		{Name: "x_center", If: fuzzy.Is(PositionX, Center), Then: []fuzzy.Assignment{vx(Stop)}},
		{Name: "x_near_front", If: fuzzy.Is(PositionX, NearFront), Then: []fuzzy.Assignment{vx(Slow(Forward))}},
		{Name: "x_far_front", If: fuzzy.Is(PositionX, FarFront), Then: []fuzzy.Assignment{vx(Fast(Forward))}},

		{Name: "y_far_right", If: fuzzy.Is(PositionY, FarRight), Then: []fuzzy.Assignment{vy(Fast(Right))}},
		{Name: "y_near_right", If: fuzzy.Is(PositionY, NearRight), Then: []fuzzy.Assignment{vy(Slow(Right))}},
		{Name: "y_center", If: fuzzy.Is(PositionY, Center), Then: []fuzzy.Assignment{vy(Stop)}},
		{Name: "y_near_left", If: fuzzy.Is(PositionY, NearLeft), Then: []fuzzy.Assignment{vy(Slow(Left))}},
		{Name: "y_far_left", If: fuzzy.Is(PositionY, FarLeft), Then: []fuzzy.Assignment{vy(Fast(Left))}},
	}
}

// ObstacleRules are evasive maneuvers; every rule commands both axes.
func ObstacleRules() []fuzzy.Rule {
	return []fuzzy.Rule{
		// left side, +y
		{
			Name: "double_left",
			If:   fuzzy.And(is(LeftFront, Dangerous), is(LeftRear, Dangerous), is(RightFront, Safe), is(Front, Safe)),
			Then: []fuzzy.Assignment{vx(Med(Forward)), vy(Med(Right))},
		},
		{
			Name: "left_front",
			If:   fuzzy.And(is(LeftFront, Dangerous), is(LeftRear, Safe), is(Front, Safe)),
			Then: []fuzzy.Assignment{vx(Fast(Forward)), vy(Fast(Right))},
		},

		// right side, -y
		{
			Name: "double_right",
			If:   fuzzy.And(is(RightFront, Dangerous), is(RightRear, Dangerous), is(LeftFront, Safe), is(Front, Safe)),
			Then: []fuzzy.Assignment{vx(Med(Forward)), vy(Med(Left))},
		},
		{
			Name: "right_front",
			If:   fuzzy.And(is(RightFront, Dangerous), is(RightRear, Safe), is(Front, Safe)),
			Then: []fuzzy.Assignment{vx(Fast(Forward)), vy(Fast(Left))},
		},

		// front, +x
		{
			Name: "front",
			If:   fuzzy.And(is(Front, Dangerous), is(LeftFront, Safe), is(RightFront, Safe)),
			Then: []fuzzy.Assignment{vx(Slow(Backward)), vy(Stop)},
		},
		{
			Name: "front_left",
			If:   fuzzy.And(is(Front, Dangerous), is(LeftFront, Dangerous)),
			Then: []fuzzy.Assignment{vx(Slow(Backward)), vy(Fast(Right))},
		},

		// rear, -x
		{
			Name: "back_left",
			If:   fuzzy.And(is(BackLeft, Dangerous), is(BackRight, Safe)),
			Then: []fuzzy.Assignment{vx(Fast(Forward)), vy(Med(Right))},
		},
		{
			Name: "back_right",
			If:   fuzzy.And(is(BackRight, Dangerous), is(BackLeft, Safe)),
			Then: []fuzzy.Assignment{vx(Fast(Forward)), vy(Med(Left))},
		},

		// boxed in at the front with one rear side blocked
		{
			Name: "box_right_rear",
			If:   fuzzy.And(is(Front, Dangerous), is(RightRear, Dangerous), is(LeftRear, Safe)),
			Then: []fuzzy.Assignment{vx(Stop), vy(Fast(Left))},
		},
		{
			Name: "box_left_rear",
			If:   fuzzy.And(is(Front, Dangerous), is(RightRear, Safe), is(LeftRear, Dangerous)),
			Then: []fuzzy.Assignment{vx(Stop), vy(Fast(Right))},
		},

		// target aware
		{
			Name: "near_target_left_front",
			If:   fuzzy.And(fuzzy.Is(PositionX, NearFront), is(LeftFront, Dangerous)),
			Then: []fuzzy.Assignment{vx(Slow(Forward)), vy(Med(Right))},
		},
		{
			Name: "near_left_target_front",
			If:   fuzzy.And(fuzzy.Is(PositionY, NearLeft), is(Front, Dangerous)),
			Then: []fuzzy.Assignment{vx(Slow(Backward)), vy(Slow(Right))},
		},
		{
			Name: "lateral_offset_front_clear",
			If:   fuzzy.And(fuzzy.Or(fuzzy.Is(PositionY, FarLeft), fuzzy.Is(PositionY, FarRight)), is(Front, Safe)),
			Then: []fuzzy.Assignment{vx(Med(Forward)), vy(Stop)},
		},
	}
}

func newGoalRuleBase(m *Model) (*fuzzy.RuleBase, error) {
	return fuzzy.NewRuleBase(GoalRuleBase, m.antecedents()[:2], m.consequents(), GoalRules()...)
}

func newObstacleRuleBase(m *Model) (*fuzzy.RuleBase, error) {
	return fuzzy.NewRuleBase(ObstacleRuleBase, m.antecedents(), m.consequents(), ObstacleRules()...)
}

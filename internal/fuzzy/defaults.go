package fuzzy

// DefaultSpeedFunctions returns the stock speed catalog (km/h).
func DefaultSpeedFunctions() map[SpeedLabel]MembershipFunction {
	return map[SpeedLabel]MembershipFunction{
		Slow:     Tri(Slow.String(), 0, 0, 40),
		Moderate: Tri(Moderate.String(), 20, 50, 80),
		Fast:     Tri(Fast.String(), 60, 90, 120),
		VeryFast: Trap(VeryFast.String(), 100, 130, 200, 200),
	}
}

// DefaultDistanceFunctions returns the stock distance catalog (meters).
func DefaultDistanceFunctions() map[DistanceLabel]MembershipFunction {
	return map[DistanceLabel]MembershipFunction{
		VeryNear: Tri(VeryNear.String(), 0, 0, 10),
		Near:     Tri(Near.String(), 5, 15, 25),
		Medium:   Tri(Medium.String(), 20, 40, 60),
		Far:      Trap(Far.String(), 50, 80, 150, 150),
	}
}

// DefaultBrakeFunctions returns the stock brake catalog (percent).
func DefaultBrakeFunctions() map[BrakeLabel]MembershipFunction {
	return map[BrakeLabel]MembershipFunction{
		NoBrake:        Tri(NoBrake.String(), 0, 0, 20),
		LightBrake:     Tri(LightBrake.String(), 10, 25, 40),
		ModerateBrake:  Tri(ModerateBrake.String(), 30, 50, 70),
		StrongBrake:    Tri(StrongBrake.String(), 60, 75, 90),
		EmergencyBrake: Tri(EmergencyBrake.String(), 80, 100, 100),
	}
}

// defaultRuleTable is the full speed x distance cross product, row-major by speed.
var defaultRuleTable = [4][4]BrakeLabel{
	Slow:     {VeryNear: ModerateBrake, Near: LightBrake, Medium: NoBrake, Far: NoBrake},
	Moderate: {VeryNear: StrongBrake, Near: ModerateBrake, Medium: LightBrake, Far: NoBrake},
	Fast:     {VeryNear: EmergencyBrake, Near: StrongBrake, Medium: ModerateBrake, Far: LightBrake},
	VeryFast: {VeryNear: EmergencyBrake, Near: EmergencyBrake, Medium: StrongBrake, Far: ModerateBrake},
}

// DefaultRules returns the 16 stock rules, all active, with fresh IDs.
func DefaultRules() []Rule {
	rules := make([]Rule, 0, len(SpeedLabels())*len(DistanceLabels()))
	for _, s := range SpeedLabels() {
		for _, d := range DistanceLabels() {
			rules = append(rules, NewRule(s, d, defaultRuleTable[s][d]))
		}
	}
	return rules
}

// DefaultBrakeFor returns the stock consequence for a speed/distance pair.
func DefaultBrakeFor(s SpeedLabel, d DistanceLabel) BrakeLabel {
	if !s.Valid() || !d.Valid() {
		return NoBrake
	}
	return defaultRuleTable[s][d]
}

package device

import "fmt"

// Characteristic names a host-visible value.
type Characteristic string

// Characteristics pushed to the host.
const (
	CharOn                 Characteristic = "On"
	CharOutletInUse        Characteristic = "OutletInUse"
	CharContactSensorState Characteristic = "ContactSensorState"
	CharMotionDetected     Characteristic = "MotionDetected"
)

// ContactSensorState is the host enum for contact sensors.
type ContactSensorState int

// Contact sensor states, numbered as the host expects them.
const (
	ContactDetected    ContactSensorState = 0
	ContactNotDetected ContactSensorState = 1
)

// String returns "detected" or "not_detected".
func (s ContactSensorState) String() string {
	if s == ContactDetected {
		return "detected"
	}
	return "not_detected"
}

// BotMode selects how a bot is actuated.
type BotMode int

// Bot modes.
const (
	// BotModeUnset means the bot is in neither the switch nor the press group.
	BotModeUnset BotMode = iota

	// BotModeSwitch maps desired on/off to turnOn/turnOff.
	BotModeSwitch

	// BotModePress always sends a momentary press.
	BotModePress
)

// String returns the configuration name of the mode.
func (m BotMode) String() string {
	switch m {
	case BotModeSwitch:
		return "switch"
	case BotModePress:
		return "press"
	default:
		return "unset"
	}
}

// Reading is a transport-neutral status reading. Nil fields were not part of
// the reading and leave the previous observed value in place.
type Reading struct {
	Power  *bool
	Open   *bool
	Motion *bool
}

// Role is the closed set of device role variants. It is selected once per
// device and decides how readings become observed state and how observed
// state becomes characteristics.
type Role interface {
	// Type returns the device-type tag this role serves.
	Type() Type

	// Derive merges a reading into the previous observed state (nil when unknown).
	Derive(prev Observed, r Reading) Observed

	// Characteristics renders an observed state for the host.
	Characteristics(o Observed) map[Characteristic]any

	// FaultCharacteristics lists the characteristics that carry a fault marker.
	FaultCharacteristics() []Characteristic

	isRole()
}

// BotRole is the role of a Bot actuator.
type BotRole struct {
	Mode BotMode

	// ExposeAsSwitch exposes the bot as a plain switch; otherwise it is an
	// outlet that always reports OutletInUse.
	ExposeAsSwitch bool
}

// Type implements Role.
func (BotRole) Type() Type { return TypeBot }

// Derive implements Role.
func (r BotRole) Derive(prev Observed, reading Reading) Observed {
	var st BotState
	if p, ok := prev.(BotState); ok {
		st = p
	}
	if reading.Power != nil {
		st.On = *reading.Power
	}
	if r.Mode == BotModePress {
		st.On = false
	}
	st.InUse = !r.ExposeAsSwitch
	return st
}

// Characteristics implements Role.
func (r BotRole) Characteristics(o Observed) map[Characteristic]any {
	st, ok := o.(BotState)
	if !ok {
		return nil
	}
	out := map[Characteristic]any{CharOn: st.On}
	if !r.ExposeAsSwitch {
		out[CharOutletInUse] = st.InUse
	}
	return out
}

// FaultCharacteristics implements Role.
func (r BotRole) FaultCharacteristics() []Characteristic {
	if r.ExposeAsSwitch {
		return []Characteristic{CharOn}
	}
	return []Characteristic{CharOn, CharOutletInUse}
}

func (BotRole) isRole() {}

// ContactRole is the role of a Contact sensor.
type ContactRole struct{}

// Type implements Role.
func (ContactRole) Type() Type { return TypeContact }

// Derive implements Role.
func (ContactRole) Derive(prev Observed, reading Reading) Observed {
	st := ContactState{Contact: ContactNotDetected}
	if p, ok := prev.(ContactState); ok {
		st = p
	}
	if reading.Open != nil {
		if *reading.Open {
			st.Contact = ContactDetected
		} else {
			st.Contact = ContactNotDetected
		}
	}
	if reading.Motion != nil {
		st.Motion = *reading.Motion
	}
	return st
}

// Characteristics implements Role.
func (ContactRole) Characteristics(o Observed) map[Characteristic]any {
	st, ok := o.(ContactState)
	if !ok {
		return nil
	}
	return map[Characteristic]any{
		CharContactSensorState: st.Contact,
		CharMotionDetected:     st.Motion,
	}
}

// FaultCharacteristics implements Role.
func (ContactRole) FaultCharacteristics() []Characteristic {
	return []Characteristic{CharContactSensorState, CharMotionDetected}
}

func (ContactRole) isRole() {}

// RoleOptions carries the configuration that selects a role.
type RoleOptions struct {
	BotExposeAsSwitch bool
	BotSwitchIDs      IDSet
	BotPressIDs       IDSet
}

// RoleFor selects the role for a device. A bot listed in both groups is in
// switch mode.
func RoleFor(s Spec, opts RoleOptions) (Role, error) {
	switch s.Type {
	case TypeBot:
		mode := BotModeUnset
		switch {
		case opts.BotSwitchIDs.Contains(s.ID):
			mode = BotModeSwitch
		case opts.BotPressIDs.Contains(s.ID):
			mode = BotModePress
		}
		return BotRole{Mode: mode, ExposeAsSwitch: opts.BotExposeAsSwitch}, nil
	case TypeContact:
		return ContactRole{}, nil
	default:
		return nil, fmt.Errorf("%w: device type %q", ErrUnsupportedRole, s.Type)
	}
}

// Observed is the closed set of observed device states.
type Observed interface {
	isObserved()
}

// BotState is the observed state of a bot.
type BotState struct {
	On    bool
	InUse bool
}

func (BotState) isObserved() {}

// ContactState is the observed state of a contact sensor.
type ContactState struct {
	Contact ContactSensorState
	Motion  bool
}

func (ContactState) isObserved() {}

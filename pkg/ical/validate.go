package ical

import (
	"slices"
	"strings"
)

// Validator is implemented by component views that carry rules beyond the
// registry's required properties.
type Validator interface {
	Validate() error
}

// Validate checks c and its subtree against reg: required properties,
// allowed children, then any kind-specific rules. A nil reg means the
// registry c was built with. The parser never calls this.
func Validate(c *Component, reg *Registry) error {
	if reg == nil {
		reg = c.registry()
	}
	if def, ok := reg.Component(c.Name); ok {
		for _, name := range def.Required {
			if c.Property(name) == nil {
				return &ValidationError{Component: c.Name, Property: name, Msg: "is required"}
			}
		}
		if len(def.Children) > 0 {
			for _, child := range c.Children() {
				if !slices.Contains(def.Children, child.Name) && !strings.HasPrefix(child.Name, "X-") {
					return &ValidationError{Component: c.Name, Msg: child.Name + " is not a valid child"}
				}
			}
		}
	}
	if v := validatorFor(c); v != nil {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	for _, child := range c.Children() {
		if err := Validate(child, reg); err != nil {
			return err
		}
	}
	return nil
}

func validatorFor(c *Component) Validator {
	switch c.Kind {
	case KindEvent:
		return &Event{Component: c}
	case KindAlarm:
		return &Alarm{Component: c}
	case KindTimezone:
		return &Timezone{Component: c}
	}
	return nil
}

// Validate requires at least one observance.
func (tz *Timezone) Validate() error {
	if len(tz.Components("STANDARD")) == 0 && len(tz.Components("DAYLIGHT")) == 0 {
		return &ValidationError{Component: tz.Name, Msg: "needs a STANDARD or DAYLIGHT observance"}
	}
	return nil
}

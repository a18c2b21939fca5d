// Package naming turns characterized clusters into display names using one
// of three modes: positional placeholders, human review, or a vision service
// gated by a content-safety classifier.
package naming

import (
	"fmt"
	"strings"
)

// Rejected is the sentinel name for clusters that are not a valid group on
// their axis. Rejected clusters keep their prompt but receive no name.
const Rejected = "no"

// Mode selects how clusters are named.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
	ModeModel  Mode = "model"
)

// ParseMode normalizes a naming mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return ModeAuto, nil
	case "manual":
		return ModeManual, nil
	case "model", "model-assisted", "gpt4o":
		return ModeModel, nil
	}
	return "", fmt.Errorf("unknown naming mode %q (want auto, manual or model)", s)
}

// Outcome is the result of naming one cluster.
type Outcome interface {
	// FinalName is the name written to members, Rejected, or "" when the
	// cluster stays unnamed.
	FinalName() string
	Source() string
}

// Placeholder is a positional name such as "costume_3".
type Placeholder struct {
	Name string
}

func (p Placeholder) FinalName() string { return p.Name }
func (p Placeholder) Source() string    { return "placeholder" }

// HumanDecision is a reviewer's answer.
type HumanDecision struct {
	Name string
	// Accepted is true when the reviewer kept the suggested placeholder.
	Accepted bool
	// SheetPath is the contact sheet shown to the reviewer, "" when none was saved.
	SheetPath string
	// Sensitive is true when every sample on the sheet carried a blacklisted tag.
	Sensitive bool
}

func (h HumanDecision) FinalName() string { return h.Name }
func (h HumanDecision) Source() string    { return "reviewer" }

// ServiceDecision is a name proposed by the vision service.
type ServiceDecision struct {
	Name  string
	Reply string
	// Rating is the safety classifier's verdict on the sheet that was sent.
	Rating string
	// Existing are the names the service was asked to avoid.
	Existing []string
}

func (s ServiceDecision) FinalName() string { return s.Name }
func (s ServiceDecision) Source() string    { return "service" }

// Rejection marks a cluster as not a valid group.
type Rejection struct {
	Reason string
}

func (r Rejection) FinalName() string { return Rejected }
func (r Rejection) Source() string    { return "rejected" }

// Unnamed is given to clusters ranked past the naming cap.
type Unnamed struct{}

func (Unnamed) FinalName() string { return "" }
func (Unnamed) Source() string    { return "unnamed" }

// Named reports whether o carries a usable name.
func Named(o Outcome) bool {
	name := o.FinalName()
	return name != "" && name != Rejected
}

// Registry holds the names already used in one subfolder pass.
type Registry struct {
	names []string
}

// Add records name unless it is empty, Rejected, or already present.
func (r *Registry) Add(name string) {
	if name == "" || name == Rejected || r.Contains(name) {
		return
	}
	r.names = append(r.names, name)
}

// Contains reports whether name was already used.
func (r *Registry) Contains(name string) bool {
	for _, n := range r.names {
		if n == name {
			return true
		}
	}
	return false
}

// Names returns a copy of the registered names in insertion order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

package routeguard

type DecisionKind string

const (
	DecisionHold     DecisionKind = "hold"
	DecisionAllow    DecisionKind = "allow"
	DecisionRedirect DecisionKind = "redirect"
)

// Decision is the outcome of a guard evaluation. Location is set for
// redirects only.
type Decision struct {
	Kind     DecisionKind `json:"kind"`
	Location string       `json:"location,omitempty"`
}

func Hold() Decision  { return Decision{Kind: DecisionHold} }
func Allow() Decision { return Decision{Kind: DecisionAllow} }

func Redirect(location string) Decision {
	return Decision{Kind: DecisionRedirect, Location: location}
}

func (d Decision) String() string {
	if d.Kind == DecisionRedirect {
		return "redirect(" + d.Location + ")"
	}
	return string(d.Kind)
}

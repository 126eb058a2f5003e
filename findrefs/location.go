package findrefs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CandidateReason explains why a location was reported.
type CandidateReason int

const (
	// ReasonDefinite is a token that binds to the target.
	ReasonDefinite CandidateReason = iota
	// ReasonPossible is a token whose binding was ambiguous and included
	// the target among its candidates.
	ReasonPossible
	// ReasonViaAlias is a token that binds to the target through an alias.
	ReasonViaAlias
	// ReasonViaSuppression is a suppression attribute naming the target.
	ReasonViaSuppression
)

var reasonNames = [...]string{
	ReasonDefinite:       "definite",
	ReasonPossible:       "possible",
	ReasonViaAlias:       "alias",
	ReasonViaSuppression: "suppression",
}

func (r CandidateReason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("CandidateReason(%d)", int(r))
	}
	return reasonNames[r]
}

func (r CandidateReason) MarshalJSON() ([]byte, error) { return json.Marshal(r.String()) }

func (r *CandidateReason) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, name := range reasonNames {
		if name == s {
			*r = CandidateReason(i)
			return nil
		}
	}
	return fmt.Errorf("unknown candidate reason %q", s)
}

// strength orders reasons for deduplication; higher wins.
func (r CandidateReason) strength() int {
	switch r {
	case ReasonDefinite:
		return 3
	case ReasonViaAlias:
		return 2
	case ReasonViaSuppression:
		return 1
	}
	return 0
}

// FinderLocation is one discovered reference.
type FinderLocation struct {
	Document   DocumentID      `json:"document"`
	Span       Span            `json:"span"`
	Reason     CandidateReason `json:"reason"`
	AliasChain []string        `json:"aliasChain,omitempty"`
	Usage      ValueUsage      `json:"usage,omitempty"`
}

func (l FinderLocation) String() string {
	s := fmt.Sprintf("%s%s %s", l.Document, l.Span, l.Reason)
	if len(l.AliasChain) > 0 {
		s += " via " + strings.Join(l.AliasChain, " -> ")
	}
	return s
}

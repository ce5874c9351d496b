package tier

import "fmt"

// RemediationKind classifies a downgrade violation.
type RemediationKind string

const (
	RemediationExcessPositions   RemediationKind = "excess_positions"
	RemediationExcessRisk        RemediationKind = "excess_risk"
	RemediationStrategyForbidden RemediationKind = "strategy_forbidden"
)

// Remediation is one reported violation of the new tier's ceilings. The
// gate only reports; it never closes or resizes anything itself.
type Remediation struct {
	Kind       RemediationKind `json:"kind"`
	PositionID string          `json:"position_id,omitempty"`
	Strategy   string          `json:"strategy,omitempty"`
	Detail     string          `json:"detail"`
}

// PortfolioView is the read-only snapshot a downgrade is checked against.
type PortfolioView struct {
	OpenPositions int
	// RiskFraction per open position id, as a fraction of account value.
	RiskFraction map[string]float64
	// Strategy per open position id.
	Strategy map[string]string
}

// Remediations reports every position or count that exceeds the new
// tier's ceilings after a downgrade. An empty slice means the portfolio
// already conforms.
func (g *Gate) Remediations(newTier Tier, view PortfolioView) []Remediation {
	var out []Remediation

	if view.OpenPositions > newTier.MaxPositions {
		out = append(out, Remediation{
			Kind:   RemediationExcessPositions,
			Detail: fmt.Sprintf("%d open positions exceed tier %q cap of %d", view.OpenPositions, newTier.Name, newTier.MaxPositions),
		})
	}

	for id, frac := range view.RiskFraction {
		if frac > newTier.MaxRiskFraction {
			out = append(out, Remediation{
				Kind:       RemediationExcessRisk,
				PositionID: id,
				Strategy:   view.Strategy[id],
				Detail:     fmt.Sprintf("risk fraction %.3f exceeds tier %q cap %.3f", frac, newTier.Name, newTier.MaxRiskFraction),
			})
		}
	}

	for id, strat := range view.Strategy {
		if !g.IsStrategyAllowed(newTier, strat) {
			out = append(out, Remediation{
				Kind:       RemediationStrategyForbidden,
				PositionID: id,
				Strategy:   strat,
				Detail:     fmt.Sprintf("strategy %q not allowed in tier %q", strat, newTier.Name),
			})
		}
	}

	return out
}

package spike

import "voltonic-power/internal/models"

// TransitionPlan load shares for one step of a gradual source change
type TransitionPlan struct {
	CurrentSource string  `json:"current_source"`
	TargetSource  string  `json:"target_source"`
	CurrentShare  float64 `json:"current_share"`
	TargetShare   float64 `json:"target_share"`
	Step          int     `json:"step"`
	TotalSteps    int     `json:"total_steps"`
	Complete      bool    `json:"transition_complete"`
}

// GradualTransition linear blend from current to target. step is clamped to [1, totalSteps].
func GradualTransition(current, target string, step, totalSteps int) TransitionPlan {
	if totalSteps < 1 {
		totalSteps = 1
	}
	if step < 1 {
		step = 1
	}
	if step > totalSteps {
		step = totalSteps
	}

	targetShare := float64(step) / float64(totalSteps)
	return TransitionPlan{
		CurrentSource: current,
		TargetSource:  target,
		CurrentShare:  models.Round(1-targetShare, 2),
		TargetShare:   models.Round(targetShare, 2),
		Step:          step,
		TotalSteps:    totalSteps,
		Complete:      step >= totalSteps,
	}
}

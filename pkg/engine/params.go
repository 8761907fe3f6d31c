package engine

import (
	"errors"

	"github.com/optoutdao/engine/pkg/credit"
)

// Params are the economic parameters of the engine. They are fixed for the
// lifetime of an Engine; changing economics means starting a new engine over
// a fresh ledger.
type Params struct {
	// BrokerSubmissionReward is minted to the submitter of a new broker.
	BrokerSubmissionReward credit.Amount `yaml:"broker_submission_reward"`
	// MinProcessorStake is the registration floor for processors.
	MinProcessorStake credit.Amount `yaml:"min_processor_stake"`
	// MinUserStake is the floor for user removal stakes.
	MinUserStake credit.Amount `yaml:"min_user_stake"`
	// MaxSelectedProcessors caps a user's trusted-processor selection.
	MaxSelectedProcessors int `yaml:"max_selected_processors"`
	// SlashPercentage is the share of stake forfeited on a slash, in whole
	// percent (0-100).
	SlashPercentage int `yaml:"slash_percentage"`
	// RemovalProcessingReward is minted to a processor per completed removal.
	RemovalProcessingReward credit.Amount `yaml:"removal_processing_reward"`
}

// DefaultParams returns the stock economics: rewards of 10.00 and 50.00 CRD,
// stake floors of 1000.00 and 100.00 CRD, up to 5 trusted processors, and a
// 50% slash.
func DefaultParams() Params {
	return Params{
		BrokerSubmissionReward:  10_00,
		MinProcessorStake:       1000_00,
		MinUserStake:            100_00,
		MaxSelectedProcessors:   5,
		SlashPercentage:         50,
		RemovalProcessingReward: 50_00,
	}
}

// Validate rejects parameter sets the engine cannot operate under.
func (p Params) Validate() error {
	if !p.BrokerSubmissionReward.IsPositive() {
		return errors.New("engine: broker_submission_reward must be positive")
	}
	if !p.MinProcessorStake.IsPositive() {
		return errors.New("engine: min_processor_stake must be positive")
	}
	if !p.MinUserStake.IsPositive() {
		return errors.New("engine: min_user_stake must be positive")
	}
	if p.MaxSelectedProcessors < 1 {
		return errors.New("engine: max_selected_processors must be at least 1")
	}
	if p.SlashPercentage < 0 || p.SlashPercentage > 100 {
		return errors.New("engine: slash_percentage must be within 0-100")
	}
	if !p.RemovalProcessingReward.IsPositive() {
		return errors.New("engine: removal_processing_reward must be positive")
	}
	return nil
}

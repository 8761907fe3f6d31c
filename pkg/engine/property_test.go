//go:build property
// +build property

// Property-based tests for the engine's economic invariants: conservation of
// value, slashing arithmetic, staking preconditions, and single completion.
package engine_test

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/optoutdao/engine/pkg/credit"
	"github.com/optoutdao/engine/pkg/engine"
)

// TestConservationUnderRandomOps verifies sum(balances) == total minted for
// arbitrary interleavings of mint, transfer, register, and stake commands,
// successful or not.
func TestConservationUnderRandomOps(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("value is conserved under random command sequences", prop.ForAll(
		func(ops []uint8, amounts []int64) bool {
			e, err := engine.New("owner", engine.DefaultParams())
			if err != nil {
				return false
			}
			p := e.Params()
			for i, op := range ops {
				var amount credit.Amount
				if i < len(amounts) {
					amount = credit.Amount(amounts[i])
				}
				actor := fmt.Sprintf("a%d", i%4)
				switch op % 4 {
				case 0:
					_ = e.MintCredit("owner", actor, amount)
				case 1:
					_ = e.TransferCredit(actor, "a0", amount)
				case 2:
					_ = e.RegisterProcessor(actor, p.MinProcessorStake, "")
				case 3:
					_ = e.StakeForRemoval(actor, p.MinUserStake, []string{"a0"})
				}
				if !e.Conserved() {
					return false
				}
			}
			return e.Conserved()
		},
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.Int64Range(-1000, 1_000_000)),
	))

	properties.TestingRun(t)
}

// TestSlashingArithmetic verifies post-slash stake is exactly
// S - floor(S * pct / 100) with reputation zeroed and eligibility revoked.
func TestSlashingArithmetic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("slashing truncates and terminates", prop.ForAll(
		func(extra int64, pct int) bool {
			params := engine.DefaultParams()
			params.SlashPercentage = pct
			e, err := engine.New("owner", params)
			if err != nil {
				return false
			}
			stake := params.MinProcessorStake + credit.Amount(extra)
			if e.MintCredit("owner", "p", stake) != nil {
				return false
			}
			if e.RegisterProcessor("p", stake, "") != nil {
				return false
			}
			if e.SlashProcessor("owner", "p", "test") != nil {
				return false
			}
			proc, err := e.GetProcessor("p")
			if err != nil {
				return false
			}
			want := stake - stake*credit.Amount(pct)/100
			return proc.Staked == want &&
				proc.Reputation == 0 &&
				!proc.Active &&
				proc.Slashed &&
				e.Conserved()
		},
		gen.Int64Range(0, 10_000_000),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

// TestStakingSelectionBounds verifies StakeForRemoval never succeeds with an
// empty, oversized, or partially ineligible selection.
func TestStakingSelectionBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("stake succeeds only for 1..max eligible distinct processors", prop.ForAll(
		func(count int, includeGhost bool) bool {
			e, err := engine.New("owner", engine.DefaultParams())
			if err != nil {
				return false
			}
			p := e.Params()
			// Register enough eligible processors to cover the selection.
			for i := 0; i < count && i <= p.MaxSelectedProcessors; i++ {
				id := fmt.Sprintf("p%d", i)
				if e.MintCredit("owner", id, p.MinProcessorStake) != nil {
					return false
				}
				if e.RegisterProcessor(id, p.MinProcessorStake, "") != nil {
					return false
				}
			}
			selected := make([]string, 0, count+1)
			for i := 0; i < count; i++ {
				selected = append(selected, fmt.Sprintf("p%d", i))
			}
			if includeGhost {
				selected = append(selected, "ghost")
			}
			if e.MintCredit("owner", "u", p.MinUserStake) != nil {
				return false
			}
			err = e.StakeForRemoval("u", p.MinUserStake, selected)

			wantOK := len(selected) >= 1 && len(selected) <= p.MaxSelectedProcessors && !includeGhost
			if wantOK != (err == nil) {
				return false
			}
			if err != nil {
				// Failed stakes must not move collateral.
				return e.BalanceOf("u") == p.MinUserStake
			}
			return true
		},
		gen.IntRange(0, 8),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestSingleCompletion verifies a task mutates state at most once no matter
// how many completion attempts arrive.
func TestSingleCompletion(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("completion applies exactly once", prop.ForAll(
		func(attempts int) bool {
			e, err := engine.New("owner", engine.DefaultParams())
			if err != nil {
				return false
			}
			p := e.Params()
			id, err := e.SubmitBroker("u1", "Acme", "https://acme.test", "")
			if err != nil || e.VerifyBroker("owner", id) != nil {
				return false
			}
			if e.MintCredit("owner", "p1", p.MinProcessorStake) != nil ||
				e.RegisterProcessor("p1", p.MinProcessorStake, "") != nil {
				return false
			}
			if e.MintCredit("owner", "u2", p.MinUserStake) != nil ||
				e.StakeForRemoval("u2", p.MinUserStake, []string{"p1"}) != nil {
				return false
			}
			taskID, err := e.RequestRemoval("u2", id)
			if err != nil {
				return false
			}

			succeeded := 0
			for i := 0; i < attempts; i++ {
				if e.CompleteRemoval("p1", taskID, fmt.Sprintf("proof-%d", i)) == nil {
					succeeded++
				}
			}
			proc, _ := e.GetProcessor("p1")
			task, _ := e.GetTask(taskID)
			if succeeded == 0 {
				return attempts == 0 && !task.Completed
			}
			return succeeded == 1 &&
				task.Completed &&
				task.Evidence == "proof-0" &&
				proc.CompletedTasks == 1 &&
				e.BalanceOf("p1") == p.RemovalProcessingReward &&
				e.Conserved()
		},
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

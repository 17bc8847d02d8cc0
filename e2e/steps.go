package e2e

import (
	"github.com/cucumber/godog"

	"votechain/e2e/steps/common"
	"votechain/e2e/steps/ratelimit"
	"votechain/e2e/steps/voting"
)

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	voting.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}

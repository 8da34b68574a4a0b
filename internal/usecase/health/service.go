package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as report keys.
const (
	ComponentIndex      = "index"
	ComponentEmbedding  = "embedding"
	ComponentCompletion = "completion"
	ComponentCache      = "cache"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Deps lists the checked components. Any of them can be nil and is then left out of the report.
type Deps struct {
	Index      Checker
	Embedding  Checker
	Completion Checker
	Cache      Pinger
}

// Service coordinates health checks.
type Service struct {
	deps Deps
}

// New creates a Service.
func New(d Deps) *Service {
	return &Service{deps: d}
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.deps.Index != nil {
		checks[ComponentIndex] = result(s.deps.Index.HealthCheck(ctx))
	}
	if s.deps.Embedding != nil {
		checks[ComponentEmbedding] = result(s.deps.Embedding.HealthCheck(ctx))
	}
	if s.deps.Completion != nil {
		checks[ComponentCompletion] = result(s.deps.Completion.HealthCheck(ctx))
	}
	if s.deps.Cache != nil {
		checks[ComponentCache] = result(s.deps.Cache.Ping(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}

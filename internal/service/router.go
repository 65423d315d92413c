package service

import (
	"github.com/rs/zerolog/log"
)

// Route names the pipeline branch that produced a response.
type Route string

const (
	RouteClarification         Route = "clarification"
	RouteDeterministicPayments Route = "deterministic_payments"
	RouteDeterministicUsers    Route = "deterministic_users"
	RouteGenerated             Route = "generated"
	RouteRejected              Route = "rejected"
)

// RoutingResult is a deterministic plan for a question.
type RoutingResult struct {
	Route     Route
	SQL       string
	Reasoning string
}

// DeterministicRouter answers simple payments and users questions without the generator.
type DeterministicRouter struct {
	dialect Dialect
}

func NewDeterministicRouter(dialect Dialect) *DeterministicRouter {
	return &DeterministicRouter{dialect: dialect}
}

// IsSimple reports whether a normalized question is eligible for deterministic routing.
func IsSimple(question string, s IntentSignals) bool {
	if s.IsGroupBy || MentionsJoin(question) {
		return false
	}
	return s.IsFilter || s.IsAggregate || (MentionsPayments(question) && s.HasTimeRange)
}

// Route builds SQL for the question when a deterministic path applies.
// The returned SQL has not been validated yet.
func (r *DeterministicRouter) Route(question string, s IntentSignals) (RoutingResult, bool) {
	if !IsSimple(question, s) {
		return RoutingResult{}, false
	}

	if MentionsPayments(question) {
		q := PaymentsQuery{Aggregate: s.IsAggregate}
		q.Status, _ = ExtractPaymentStatus(question)
		q.SinceDays, _ = ExtractDayWindow(question)
		sql, err := BuildPaymentsQuery(r.dialect, q)
		if err != nil {
			log.Warn().Err(err).Msg("payments builder rejected extracted values")
			return RoutingResult{}, false
		}
		return RoutingResult{
			Route:     RouteDeterministicPayments,
			SQL:       sql,
			Reasoning: "payments question with closed-vocabulary filters",
		}, true
	}

	if MentionsUsers(question) && !MentionsEvents(question) && !MentionsTickets(question) {
		q := UsersQuery{Aggregate: s.IsAggregate}
		q.Country, _ = ExtractCountry(question)
		sql, err := BuildUsersQuery(r.dialect, q)
		if err != nil {
			log.Warn().Err(err).Msg("users builder rejected extracted values")
			return RoutingResult{}, false
		}
		return RoutingResult{
			Route:     RouteDeterministicUsers,
			SQL:       sql,
			Reasoning: "users question with closed-vocabulary filters",
		}, true
	}

	return RoutingResult{}, false
}

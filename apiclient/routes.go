package apiclient

// Marketplace API route constants
// All endpoint paths are defined here to ensure consistency and prevent typos
const (
	// Auth endpoints
	RouteAuthLogin          = "/auth/login"
	RouteAuthRegister       = "/auth/register"
	RouteAuthLogout         = "/auth/logout"
	RouteAuthRefresh        = "/auth/refresh"
	RouteAuthMe             = "/auth/me"
	RouteAuthForgotPassword = "/auth/forgot-password"
	RouteAuthGoogle         = "/auth/google"

	// Client-area endpoints
	RouteClientCaseSubmit = "/client/case-submit"
	RouteClientCases      = "/client/cases"
	RouteClientFindLawyer = "/client/find-lawyer"

	// Lawyer-area endpoints
	RouteLawyerAssignedCases = "/lawyer/assigned-cases"
	RouteLawyerAvailableCase = "/lawyer/available-case"
	RouteLawyerHandleCases   = "/lawyer/handle-cases"
)

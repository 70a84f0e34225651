package rbac

import "strings"

// Platform role names as returned on business membership edges
const (
	RoleAdmin         = "ADMIN"
	RoleFinanceEditor = "FINANCE_EDITOR"
	RoleFinance       = "FINANCE"
	RoleEmployee      = "EMPLOYEE"
)

// Ad account tasks
const (
	TaskManage    = "MANAGE"
	TaskAdmin     = "ADMIN"
	TaskAdvertise = "ADVERTISE"
	TaskAnalyze   = "ANALYZE"
	TaskDraft     = "DRAFT"
)

// adminTasks grant admin-equivalent access on an ad account.
var adminTasks = []string{TaskManage, TaskAdmin}

// paymentRoleMarkers are matched as case-insensitive substrings.
var paymentRoleMarkers = []string{RoleAdmin, RoleFinanceEditor, RoleFinance}

// IsAdminOrFinance checks if a role string allows managing payment methods.
func IsAdminOrFinance(role string) bool {
	upper := strings.ToUpper(role)
	for _, m := range paymentRoleMarkers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

// TasksGrantAdmin collapses an ad account task list into an admin flag.
func TasksGrantAdmin(tasks []string) bool {
	for _, t := range tasks {
		for _, a := range adminTasks {
			if strings.EqualFold(t, a) {
				return true
			}
		}
	}
	return false
}

// RoleFromTasks returns ADMIN for admin-equivalent task lists and the joined tasks otherwise.
func RoleFromTasks(tasks []string) string {
	if TasksGrantAdmin(tasks) {
		return RoleAdmin
	}
	return strings.ToUpper(strings.Join(tasks, ","))
}

// CanManagePayments is the asymmetric admin decision. An unknown business role
// (nil) is tolerated; a known role must be admin or finance. The ad account role
// is always required.
func CanManagePayments(businessRole, adAccountRole *string) bool {
	adOk := adAccountRole != nil && IsAdminOrFinance(*adAccountRole)
	bizOk := businessRole == nil || IsAdminOrFinance(*businessRole)
	return adOk && bizOk
}

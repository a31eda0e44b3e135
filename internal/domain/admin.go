package domain

// AdminUser identifies an admin referenced by ticket assignment, response
// authorship, and internal notes. This core never mutates admins.
type AdminUser struct {
	ID          string
	DisplayName string
	Email       string
}

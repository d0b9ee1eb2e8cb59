package constants

import "fmt"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
	RoleOwner = "owner"
)

// Template pesan error role
const (
	ErrOnlyAdminsCanAccess = "❌ Hanya admin atau owner yang boleh mengakses fitur %s."
)

func RoleErrorAdmin(feature string) string {
	return fmt.Sprintf(ErrOnlyAdminsCanAccess, feature)
}

// ==========================
// ✅ Grouped Role Slices
// ==========================
var (
	AllRoles = []string{RoleUser, RoleAdmin, RoleOwner}

	// boleh lihat transaksi, event callback, dan memicu sweep
	PaymentAdmins = []string{RoleAdmin, RoleOwner}
)

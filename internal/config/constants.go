package config

import "time"

// Default paths for databases
const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./espace-classe.db"

	// DefaultSessionMaxAge is the lifetime of the unified and admin session cookies.
	DefaultSessionMaxAge = 7 * 24 * time.Hour

	// DefaultFallbackEstablishmentID scopes admin sessions whose establishment cannot be found.
	DefaultFallbackEstablishmentID = "mock-establishment-id"

	// DemoEstablishmentCode is the code of the seeded demo establishment.
	DemoEstablishmentCode = "STM14000"
)

// DefaultAdminCodes is the built-in admin bypass table, used when no codes file is configured.
var DefaultAdminCodes = []AdminCode{
	{
		Code:              "cpdc001",
		Establishment:     "ST-MARIE 14000",
		EstablishmentCode: DemoEstablishmentCode,
		Role:              "delegue",
		Username:          "admin.delegue.stm",
		DisplayName:       "Admin Délégué ST-MARIE",
	},
	{
		Code:              "cpdc002",
		Establishment:     "ST-MARIE 14000",
		EstablishmentCode: DemoEstablishmentCode,
		Role:              "professeur",
		Username:          "admin.prof.stm",
		DisplayName:       "Admin Professeur ST-MARIE",
	},
	{
		Code:              "cpdc003",
		Establishment:     "ST-MARIE 14000",
		EstablishmentCode: DemoEstablishmentCode,
		Role:              "vie-scolaire",
		Username:          "admin.vs.stm",
		DisplayName:       "Admin Vie Scolaire ST-MARIE",
	},
}

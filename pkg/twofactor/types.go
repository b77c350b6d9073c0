package twofactor

import "time"

// Record is the persisted two-factor state of one account.
//
// Secret holds the Base32 encoding of the shared key and BackupCodeHashes the
// hex SHA-256 digests of unused backup codes. Plaintext backup codes are never
// stored.
type Record struct {
	Enabled          bool      `json:"enabled" bson:"enabled"`
	Secret           string    `json:"secret" bson:"secret"`
	BackupCodeHashes []string  `json:"backup_code_hashes" bson:"backup_code_hashes"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" bson:"updated_at"`
}

// Valid reports whether the record is internally consistent: a disabled record
// carries neither a secret nor hashes, and an enabled one always has a secret.
// An enabled record may run out of backup codes through normal use; it is
// written with a full set at enrollment and on regeneration.
func (r Record) Valid() bool {
	if !r.Enabled {
		return r.Secret == "" && len(r.BackupCodeHashes) == 0
	}
	return r.Secret != ""
}

// RemainingBackupCodes returns the number of unused backup codes.
func (r Record) RemainingBackupCodes() int {
	if !r.Enabled {
		return 0
	}
	return len(r.BackupCodeHashes)
}

// Clone returns a deep copy so callers can mutate the result freely.
func (r Record) Clone() Record {
	if r.BackupCodeHashes != nil {
		r.BackupCodeHashes = append([]string(nil), r.BackupCodeHashes...)
	}
	return r
}

// Status is the public view of an account's two-factor configuration.
type Status struct {
	Enabled              bool      `json:"enabled"`
	RemainingBackupCodes int       `json:"remaining_backup_codes"`
	UpdatedAt            time.Time `json:"updated_at,omitzero"`
}

// State names a step of the enrollment or login flow.
type State string

func (s State) Name() string { return string(s) }

func (s State) String() string { return string(s) }

type event string

func (e event) Name() string { return string(e) }

package auth

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// FilePurpose names the per-purpose key prefixes under which uploaded
// objects are stored. The prefix doubles as the access-control scope
// for non-privileged callers.
type FilePurpose string

const (
	PurposeMembership  FilePurpose = "membership"
	PurposePayments    FilePurpose = "payments"
	PurposeSubmissions FilePurpose = "submissions"
)

var filePurposes = []FilePurpose{PurposeMembership, PurposePayments, PurposeSubmissions}

// SanitizeEmail maps an email to a path-safe fragment by replacing
// every character outside [A-Za-z0-9] with '_'. The upload key
// generator and the download-time ownership gate must both use this
// function; the gate is only sound if they agree.
func SanitizeEmail(email string) string {
	var b strings.Builder
	b.Grow(len(email))
	for _, c := range email {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// FileKey builds the object-store key for an upload:
// <purpose>/<sanitized email>/<uuid>.<ext>. The extension is taken
// from the original filename, defaulting to "file".
func FileKey(purpose FilePurpose, email, filename string) string {
	ext := "file"
	if i := strings.LastIndex(filename, "."); i >= 0 && i < len(filename)-1 {
		ext = filename[i+1:]
	}
	return fmt.Sprintf("%s/%s/%s.%s", purpose, SanitizeEmail(email), uuid.NewString(), ext)
}

// CanAccessFile decides whether the identity may read the object at
// key. Admins and developers may read anything. Participants may only
// read keys under one of the fixed purpose prefixes followed by their
// own sanitized email. A nil identity is always denied.
func CanAccessFile(id *Identity, key string) bool {
	if id == nil {
		return false
	}
	if id.HasRole(RoleAdmin, RoleDeveloper) {
		return true
	}
	normalized := strings.TrimLeft(key, "/")
	safe := SanitizeEmail(id.Email)
	for _, p := range filePurposes {
		if strings.HasPrefix(normalized, string(p)+"/"+safe+"/") {
			return true
		}
	}
	return false
}

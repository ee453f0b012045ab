package credential

import "time"

// Record is the authoritative form of a credential row. The pool owns the
// single mutable copy; everything handed outward is a clone or an Assigned
// snapshot.
type Record struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email,omitempty"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	ProjectID    string    `json:"project_id"`
	Scopes       []string  `json:"scopes,omitempty"`
	RefreshToken string    `json:"refresh_token"`
	AccessToken  string    `json:"access_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
	// Status is the persisted active flag. Disabled rows stay in the pool
	// as tombstones so re-imports of the same refresh token do not
	// multiply them, but they are never assigned.
	Status bool `json:"status"`
}

// GoogleCredential is the on-disk / import shape of a Google OAuth
// credential, matching the JSON files the Gemini CLI writes.
type GoogleCredential struct {
	Email        string    `json:"email,omitempty"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	ProjectID    string    `json:"project_id"`
	Scopes       []string  `json:"scopes,omitempty"`
	RefreshToken string    `json:"refresh_token"`
	AccessToken  string    `json:"access_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Record converts an imported credential into a fresh active row. The id
// is assigned by the repository on first insert.
func (g GoogleCredential) Record() Record {
	return Record{
		Email:        g.Email,
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		ProjectID:    g.ProjectID,
		Scopes:       append([]string(nil), g.Scopes...),
		RefreshToken: g.RefreshToken,
		AccessToken:  g.AccessToken,
		Expiry:       g.Expiry,
		Status:       true,
	}
}

// Assigned is the minimal immutable view handed to a dispatcher. Updates
// to the underlying record never propagate into views already given out.
type Assigned struct {
	ID          int64
	ProjectID   string
	AccessToken string
}

// Assigned snapshots the fields a dispatcher needs.
func (r *Record) Assigned() Assigned {
	return Assigned{ID: r.ID, ProjectID: r.ProjectID, AccessToken: r.AccessToken}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	out.Scopes = append([]string(nil), r.Scopes...)
	return &out
}

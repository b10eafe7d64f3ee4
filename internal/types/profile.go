package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Interest is one entry of a profile interest list.
// Older profiles store plain strings, newer ones store {name, id} objects; both decode here.
type Interest struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// UnmarshalJSON accepts either a JSON string or an object with a name field.
func (i *Interest) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*i = Interest{}
		return nil
	}

	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*i = Interest{Name: name}
		return nil
	}

	var obj struct {
		Name string          `json:"name"`
		ID   json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("interest must be a string or {name, id} object: %w", err)
	}
	*i = Interest{Name: obj.Name, ID: rawScalar(obj.ID)}
	return nil
}

// rawScalar renders a JSON scalar (string or number) as a plain string.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// InterestLists maps a profile field name (e.g. "musicArtists") to its entries.
type InterestLists map[string][]Interest

// UserProfile is a member's stored taste profile.
type UserProfile struct {
	Email     string        `json:"email"`
	Name      string        `json:"name,omitempty"`
	Interests InterestLists `json:"interests"`
	UpdatedAt time.Time     `json:"updatedAt,omitempty"`
}

// Group is a set of users identified by a join code.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Owner     string    `json:"owner"`
	Members   []string  `json:"members"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MemberSnapshot is the trimmed view of one member's interests that is sent to the text generator.
type MemberSnapshot struct {
	Member    string              `json:"member"`
	Interests map[string][]string `json:"interests"`
}

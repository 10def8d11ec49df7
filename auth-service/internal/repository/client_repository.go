package repository

import (
	"errors"
	"fmt"
	"strings"
)

var ErrClientNotFound = errors.New("client not found")

// Client is an OAuth2 client allowed to request tokens with the
// client_credentials grant.
type Client struct {
	ID         string
	SecretHash string
	Scopes     []string
}

// ClientRepository is a read-only registry of clients loaded at startup.
type ClientRepository struct {
	clients map[string]Client
}

func NewClientRepository(clients []Client) *ClientRepository {
	byID := make(map[string]Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}
	return &ClientRepository{clients: byID}
}

func (r *ClientRepository) GetByID(id string) (*Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return &c, nil
}

// ParseClients reads "id:bcrypt-hash:scope scope" entries separated by ";".
// Scopes contain colons themselves, so only the first two separate fields.
func ParseClients(raw string) ([]Client, error) {
	var clients []Client
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid client entry %q", entry)
		}
		clients = append(clients, Client{
			ID:         parts[0],
			SecretHash: parts[1],
			Scopes:     strings.Fields(parts[2]),
		})
	}
	return clients, nil
}

package identity

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"go.uber.org/zap"

	"autocloudskill/config"
	"autocloudskill/domain/entities"
)

// Generator builds registration identities from the randomuser.me API. The
// generated password never comes from the API; it is produced locally.
type Generator struct {
	apiURL     string
	httpClient *http.Client
	log        *zap.Logger
}

// NewGenerator - builds an identity generator
func NewGenerator(cfg config.ServicesConfig, log *zap.Logger) *Generator {
	return &Generator{
		apiURL:     cfg.IdentityURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.Named("identity"),
	}
}

type randomUserResponse struct {
	Results []struct {
		Name struct {
			First string `json:"first"`
			Last  string `json:"last"`
		} `json:"name"`
		Location struct {
			Country string `json:"country"`
		} `json:"location"`
	} `json:"results"`
}

// GenerateProfile fetches a random identity and attaches a fresh strong
// password. Email stays empty; the caller provisions it from the mail relay.
func (g *Generator) GenerateProfile(ctx context.Context) (entities.ProfileRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.apiURL+"?inc=name,location&nat=us,gb,ca,au", nil)
	if err != nil {
		return entities.ProfileRecord{}, fmt.Errorf("failed to build identity request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return entities.ProfileRecord{}, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entities.ProfileRecord{}, fmt.Errorf("identity API returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return entities.ProfileRecord{}, fmt.Errorf("failed to read identity response: %w", err)
	}

	var parsed randomUserResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return entities.ProfileRecord{}, fmt.Errorf("failed to decode identity response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return entities.ProfileRecord{}, fmt.Errorf("identity API returned no results")
	}

	password, err := GeneratePassword(16)
	if err != nil {
		return entities.ProfileRecord{}, err
	}

	result := parsed.Results[0]
	profile := entities.ProfileRecord{
		FirstName: result.Name.First,
		LastName:  result.Name.Last,
		Password:  password,
		Company:   "Independent",
		Country:   result.Location.Country,
	}
	g.log.Info("identity generated",
		zap.String("first_name", profile.FirstName),
		zap.String("last_name", profile.LastName))
	return profile, nil
}

const (
	passwordLower   = "abcdefghijkmnopqrstuvwxyz"
	passwordUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	passwordDigits  = "23456789"
	passwordSymbols = "!@#$%&*"
)

// GeneratePassword returns a random password with at least one character
// from each class. Minimum usable length is 8.
func GeneratePassword(length int) (string, error) {
	if length < 8 {
		length = 8
	}

	classes := []string{passwordLower, passwordUpper, passwordDigits, passwordSymbols}
	all := passwordLower + passwordUpper + passwordDigits + passwordSymbols

	chars := make([]byte, 0, length)
	for _, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < length {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	for i := len(chars) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("failed to shuffle password: %w", err)
		}
		chars[i], chars[j.Int64()] = chars[j.Int64()], chars[i]
	}
	return string(chars), nil
}

func randomChar(set string) (byte, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("failed to draw random character: %w", err)
	}
	return set[idx.Int64()], nil
}

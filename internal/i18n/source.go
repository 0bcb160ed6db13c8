package i18n

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidLanguage is returned for language codes that cannot name a pack file.
var ErrInvalidLanguage = errors.New("i18n: invalid language code")

// DirSource reads <dir>/<lang>.json.
type DirSource string

func (d DirSource) Load(_ context.Context, lang string) (Pack, error) {
	if !validCode(lang) {
		return nil, ErrInvalidLanguage
	}
	raw, err := os.ReadFile(filepath.Join(string(d), lang+".json"))
	if err != nil {
		return nil, err
	}
	return decodePack(raw)
}

// HTTPSource fetches <BaseURL>/<lang>.json.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func (s HTTPSource) Load(ctx context.Context, lang string) (Pack, error) {
	if !validCode(lang) {
		return nil, ErrInvalidLanguage
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	url := strings.TrimRight(s.BaseURL, "/") + "/" + lang + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return decodePack(raw)
}

// decodePack accepts a flat object. Non-string values are kept in their JSON text form.
func decodePack(raw []byte) (Pack, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode pack: %w", err)
	}
	p := make(Pack, len(m))
	for k, v := range m {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			p[k] = s
			continue
		}
		if string(v) == "null" {
			continue
		}
		p[k] = string(v)
	}
	return p, nil
}

func validCode(lang string) bool {
	if lang == "" || len(lang) > 16 {
		return false
	}
	for _, r := range lang {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

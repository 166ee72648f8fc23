// validate_auth.go obtains a Keycloak token and exercises the authenticated
// endpoints of a running technical service.
//
// Usage:
//
//	go run scripts/validate_auth.go -api http://localhost:8000 \
//	    -realm https://relife-identity.test.ctic.es/realms/relife \
//	    -client relife-technical -secret $KEYCLOAK_CLIENT_SECRET [-user alice -password ...]
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var kpis = []string{
	"envelope_kpi", "window_kpi", "heating_system_kpi", "cooling_system_kpi",
	"ii_kpi", "aoc_kpi", "irr_kpi", "npv_kpi", "pp_kpi", "arv_kpi",
	"st_coverage_kpi", "onsite_res_kpi", "net_energy_export_kpi",
	"embodied_carbon_kpi", "gwp_kpi",
	"thermal_comfort_air_temp_kpi", "thermal_comfort_humidity_kpi",
}

type check struct {
	name   string
	method string
	path   string
	body   any
	auth   bool
	want   int
}

func main() {
	apiURL := flag.String("api", "http://localhost:8000", "technical service base URL")
	realm := flag.String("realm", os.Getenv("KEYCLOAK_REALM_URL"), "Keycloak realm URL")
	clientID := flag.String("client", os.Getenv("KEYCLOAK_CLIENT_ID"), "Keycloak client id")
	secret := flag.String("secret", os.Getenv("KEYCLOAK_CLIENT_SECRET"), "Keycloak client secret")
	user := flag.String("user", "", "username for the password grant; client credentials when empty")
	password := flag.String("password", "", "password for the password grant")
	flag.Parse()

	if *realm == "" || *clientID == "" {
		log.Fatal("-realm and -client are required")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	token, err := fetchToken(client, *realm, *clientID, *secret, *user, *password)
	if err != nil {
		log.Fatalf("get token: %v", err)
	}
	log.Printf("obtained token (%d bytes)", len(token))

	bounds := make(map[string][]float64, len(kpis))
	tech := map[string]any{"name": "validation"}
	for _, k := range kpis {
		bounds[k] = []float64{0, 100}
		tech[k] = 50.0
	}
	ranking := map[string]any{
		"profile":      "Environment-Oriented",
		"technologies": []any{tech},
		"mins_maxes":   bounds,
	}

	checks := []check{
		{"health", "GET", "/health", nil, false, http.StatusOK},
		{"whoami without token", "GET", "/whoami", nil, false, http.StatusUnauthorized},
		{"whoami", "GET", "/whoami", nil, true, http.StatusOK},
		{"user profile", "GET", "/user-profile", nil, true, http.StatusOK},
		{"topsis", "POST", "/mcda/topsis", ranking, true, http.StatusOK},
	}

	failed := 0
	for _, c := range checks {
		status, body, err := run(client, *apiURL, token, c)
		switch {
		case err != nil:
			log.Printf("FAIL %s: %v", c.name, err)
			failed++
		case status != c.want:
			log.Printf("FAIL %s: status %d, want %d: %s", c.name, status, c.want, strings.TrimSpace(body))
			failed++
		default:
			log.Printf("ok   %s", c.name)
		}
	}

	log.Printf("done: %d passed, %d failed", len(checks)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func fetchToken(client *http.Client, realm, clientID, secret, user, password string) (string, error) {
	form := url.Values{"client_id": {clientID}}
	if secret != "" {
		form.Set("client_secret", secret)
	}
	if user != "" {
		form.Set("grant_type", "password")
		form.Set("username", user)
		form.Set("password", password)
	} else {
		form.Set("grant_type", "client_credentials")
	}

	resp, err := client.PostForm(strings.TrimRight(realm, "/")+"/protocol/openid-connect/token", form)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, b)
	}
	var tr struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("empty access_token")
	}
	return tr.AccessToken, nil
}

func run(client *http.Client, apiURL, token string, c check) (int, string, error) {
	var body io.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		if err != nil {
			return 0, "", err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(c.method, strings.TrimRight(apiURL, "/")+c.path, body)
	if err != nil {
		return 0, "", err
	}
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b), nil
}

// Command mock-backend runs a fake authentication backend for local
// development: a JWKS endpoint, a token-minting endpoint, and the
// membership API surface the server verifies opaque credentials
// against.
//
// Point the server at it:
//
//	auth:
//	  issuer: http://localhost:9200
//	  membership_api_url: http://localhost:9200
//
// Mint a federated token with:
//
//	curl -s -X POST 'http://localhost:9200/token?organisation=acme'
//
// Any opaque credential listed via -pat is accepted by the membership
// endpoints.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const keyID = "mock-backend-1"

func main() {
	port := flag.Int("port", 9200, "listen port")
	issuer := flag.String("issuer", "", "issuer claim (default: http://localhost:<port>)")
	audience := flag.String("audience", "deployment-queue-api", "audience claim")
	pat := flag.String("pat", "dqp_local", "opaque credential accepted by the membership endpoints")
	patUser := flag.String("pat-user", "local-dev", "username the opaque credential resolves to")
	patOrgs := flag.String("pat-orgs", "acme", "comma-separated organisations the user belongs to")
	flag.Parse()

	if *issuer == "" {
		*issuer = fmt.Sprintf("http://localhost:%d", *port)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		slog.Error("generating signing key", "error", err)
		os.Exit(1)
	}

	b := &backend{
		issuer:   *issuer,
		audience: *audience,
		key:      key,
		pat:      *pat,
		patUser:  *patUser,
		patOrgs:  splitList(*patOrgs),
	}

	slog.Info("mock auth backend starting",
		"port", *port, "issuer", b.issuer, "pat_user", b.patUser)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", *port), b.handler()); err != nil {
		slog.Error("mock backend failed", "error", err)
		os.Exit(1)
	}
}

type backend struct {
	issuer   string
	audience string
	key      *rsa.PrivateKey
	pat      string
	patUser  string
	patOrgs  []string
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/jwks", b.handleJWKS)
	mux.HandleFunc("POST /token", b.handleToken)
	mux.HandleFunc("GET /user", b.handleUser)
	mux.HandleFunc("GET /user/orgs", b.handleUserOrgs)
	return mux
}

func (b *backend) handleJWKS(w http.ResponseWriter, r *http.Request) {
	pub := &b.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": keyID,
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

// handleToken mints a short-lived federated token for the requested
// organisation. Development convenience only; there is no caller
// verification here by definition.
func (b *backend) handleToken(w http.ResponseWriter, r *http.Request) {
	org := r.URL.Query().Get("organisation")
	if org == "" {
		http.Error(w, "organisation query parameter required", http.StatusBadRequest)
		return
	}

	now := time.Now()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, jwtlib.MapClaims{
		"iss":              b.issuer,
		"aud":              b.audience,
		"iat":              now.Unix(),
		"exp":              now.Add(15 * time.Minute).Unix(),
		"repository_owner": org,
		"repository":       org + "/local",
		"workflow":         "mock-backend",
		"actor":            b.patUser,
	})
	token.Header["kid"] = keyID

	signed, err := token.SignedString(b.key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": signed})
}

func (b *backend) handleUser(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"login": b.patUser})
}

func (b *backend) handleUserOrgs(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	type org struct {
		Login string `json:"login"`
	}
	entries := []org{}
	if r.URL.Query().Get("page") == "1" {
		for _, o := range b.patOrgs {
			entries = append(entries, org{Login: o})
		}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (b *backend) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+b.pat
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

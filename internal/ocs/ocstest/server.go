// Package ocstest provides an in-process fake of the OCS share API for
// tests.
package ocstest

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/alexjbarnes/nextcloud-links/internal/credentials"
	"github.com/alexjbarnes/nextcloud-links/internal/ocs"
)

// Test account accepted by the fake server.
const (
	Username = "artist"
	Password = "hunter2"
)

// Format selects the response encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatXML
)

// Server is a fake share API. Fields may be changed between calls; use
// the accessor methods to read recorded requests.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	shares []ocs.Share
	lists  []url.Values
	posts  []url.Values
	nextID int

	// Format selects JSON (default) or OCS XML responses.
	Format Format
	// ListStatus, when non-zero, is returned for every GET instead of data.
	ListStatus int
	// CreateStatus, when non-zero, is returned for every POST instead of data.
	CreateStatus int
	// CreateBody, when non-empty, is written verbatim for every POST.
	CreateBody string
}

// New starts a fake server and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{nextID: 1}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)

	return s
}

// Credentials returns credentials accepted by the server.
func (s *Server) Credentials() credentials.Credentials {
	return credentials.Credentials{
		BaseURL:  s.URL,
		Username: Username,
		Password: Password,
	}
}

// AddShare seeds an existing share. Missing ID and URL are filled in.
func (s *Server) AddShare(sh ocs.Share) ocs.Share {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addLocked(sh)
}

func (s *Server) addLocked(sh ocs.Share) ocs.Share {
	if sh.ID == "" {
		sh.ID = strconv.Itoa(s.nextID)
	}

	if sh.URL == "" && sh.ShareType == ocs.ShareTypePublicLink {
		sh.Token = fmt.Sprintf("tok%d", s.nextID)
		sh.URL = s.URL + "/s/" + sh.Token
	}

	s.nextID++
	s.shares = append(s.shares, sh)

	return sh
}

// Shares returns a copy of the stored shares.
func (s *Server) Shares() []ocs.Share {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]ocs.Share(nil), s.shares...)
}

// Lists returns the query of every GET received.
func (s *Server) Lists() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]url.Values(nil), s.lists...)
}

// Posts returns the form of every POST received.
func (s *Server) Posts() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]url.Values(nil), s.posts...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != ocs.SharesPath {
		http.NotFound(w, r)
		return
	}

	user, pass, ok := r.BasicAuth()
	if !ok || user != Username || pass != Password {
		w.WriteHeader(http.StatusUnauthorized)
		s.writeMeta(w, http.StatusUnauthorized, "Unauthorised")

		return
	}

	if r.Header.Get("OCS-APIRequest") != "true" {
		w.WriteHeader(http.StatusBadRequest)
		s.writeMeta(w, http.StatusBadRequest, "CSRF check failed")

		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleList(w, r)
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.lists = append(s.lists, r.URL.Query())
	status := s.ListStatus

	path := r.URL.Query().Get("path")

	var matched []ocs.Share

	for _, sh := range s.shares {
		if path == "" || sh.Path == path {
			matched = append(matched, sh)
		}
	}
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		s.writeMeta(w, status, "listing failed")

		return
	}

	s.writeShares(w, matched, true)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.posts = append(s.posts, r.PostForm)
	status := s.CreateStatus
	body := s.CreateBody

	var created ocs.Share
	if status == 0 && body == "" {
		created = s.addLocked(ocs.Share{
			ShareType:   atoi(r.PostForm.Get("shareType")),
			Permissions: atoi(r.PostForm.Get("permissions")),
			Expiration:  r.PostForm.Get("expireDate"),
			Path:        r.PostForm.Get("path"),
			Owner:       Username,
		})
	}
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		s.writeMeta(w, status, "creation failed")

		return
	}

	if body != "" {
		w.Write([]byte(body))
		return
	}

	s.writeShares(w, []ocs.Share{created}, false)
}

func atoi(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

// --- encoding ---

type jsonShare struct {
	ID          string  `json:"id"`
	ShareType   int     `json:"share_type"`
	Permissions int     `json:"permissions"`
	Expiration  *string `json:"expiration"`
	Path        string  `json:"path"`
	URL         string  `json:"url,omitempty"`
	Token       string  `json:"token,omitempty"`
	Owner       string  `json:"uid_owner"`
}

func toJSON(sh ocs.Share) jsonShare {
	js := jsonShare{
		ID:          sh.ID,
		ShareType:   sh.ShareType,
		Permissions: sh.Permissions,
		Path:        sh.Path,
		URL:         sh.URL,
		Token:       sh.Token,
		Owner:       sh.Owner,
	}

	// Real servers send null for no expiration and a timestamp otherwise.
	if sh.Expiration != "" {
		exp := sh.Expiration + " 00:00:00"
		js.Expiration = &exp
	}

	return js
}

type xmlShare struct {
	ID          string `xml:"id"`
	ShareType   int    `xml:"share_type"`
	Permissions int    `xml:"permissions"`
	Expiration  string `xml:"expiration"`
	Path        string `xml:"path"`
	URL         string `xml:"url,omitempty"`
	Token       string `xml:"token,omitempty"`
	Owner       string `xml:"uid_owner"`
}

func toXML(sh ocs.Share) xmlShare {
	xs := xmlShare{
		ID:          sh.ID,
		ShareType:   sh.ShareType,
		Permissions: sh.Permissions,
		Path:        sh.Path,
		URL:         sh.URL,
		Token:       sh.Token,
		Owner:       sh.Owner,
	}

	if sh.Expiration != "" {
		xs.Expiration = sh.Expiration + " 00:00:00"
	}

	return xs
}

type xmlMeta struct {
	Status     string `xml:"status"`
	StatusCode int    `xml:"statuscode"`
	Message    string `xml:"message"`
}

func (s *Server) writeShares(w http.ResponseWriter, shares []ocs.Share, list bool) {
	if s.Format == FormatXML {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")

		type listDoc struct {
			XMLName  xml.Name   `xml:"ocs"`
			Meta     xmlMeta    `xml:"meta"`
			Elements []xmlShare `xml:"data>element"`
		}

		type singleDoc struct {
			XMLName xml.Name `xml:"ocs"`
			Meta    xmlMeta  `xml:"meta"`
			Data    xmlShare `xml:"data"`
		}

		meta := xmlMeta{Status: "ok", StatusCode: http.StatusOK, Message: "OK"}

		var doc interface{}
		if list {
			elems := make([]xmlShare, 0, len(shares))
			for _, sh := range shares {
				elems = append(elems, toXML(sh))
			}

			doc = listDoc{Meta: meta, Elements: elems}
		} else {
			doc = singleDoc{Meta: meta, Data: toXML(shares[0])}
		}

		w.Write([]byte(xml.Header))
		xml.NewEncoder(w).Encode(doc)

		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	var data interface{}
	if list {
		items := make([]jsonShare, 0, len(shares))
		for _, sh := range shares {
			items = append(items, toJSON(sh))
		}

		data = items
	} else {
		data = toJSON(shares[0])
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"ocs": map[string]interface{}{
			"meta": map[string]interface{}{"status": "ok", "statuscode": http.StatusOK, "message": "OK"},
			"data": data,
		},
	})
}

func (s *Server) writeMeta(w http.ResponseWriter, code int, message string) {
	if s.Format == FormatXML {
		type doc struct {
			XMLName xml.Name `xml:"ocs"`
			Meta    xmlMeta  `xml:"meta"`
			Data    string   `xml:"data"`
		}

		xml.NewEncoder(w).Encode(doc{Meta: xmlMeta{Status: "failure", StatusCode: code, Message: message}})

		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"ocs": map[string]interface{}{
			"meta": map[string]interface{}{"status": "failure", "statuscode": code, "message": message},
			"data": []interface{}{},
		},
	})
}

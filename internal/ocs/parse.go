package ocs

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "github.com/alexjbarnes/nextcloud-links/internal/errors"
	"github.com/tidwall/gjson"
)

// Servers may answer in JSON or in the legacy OCS XML format regardless
// of the Accept header, so every parser tries JSON first and falls back
// to XML when the body is not valid JSON.

type xmlEnvelope struct {
	XMLName xml.Name `xml:"ocs"`
	Meta    xmlMeta  `xml:"meta"`
	Data    xmlData  `xml:"data"`
}

type xmlMeta struct {
	Status     string `xml:"status"`
	StatusCode string `xml:"statuscode"`
	Message    string `xml:"message"`
}

// xmlShare keeps every field a string so empty elements such as
// <expiration/> or <stime/> never fail the whole document.
type xmlShare struct {
	ID          string `xml:"id"`
	ShareType   string `xml:"share_type"`
	Permissions string `xml:"permissions"`
	Expiration  string `xml:"expiration"`
	Path        string `xml:"path"`
	URL         string `xml:"url"`
	Token       string `xml:"token"`
	ItemType    string `xml:"item_type"`
	FileTarget  string `xml:"file_target"`
	Owner       string `xml:"uid_owner"`
	STime       string `xml:"stime"`
}

// xmlData is either a list of <element> children or a single share
// whose fields sit directly under <data>.
type xmlData struct {
	Elements []xmlShare `xml:"element"`
	xmlShare
}

func (x xmlShare) empty() bool {
	return x.ID == "" && x.URL == "" && x.Path == "" && x.Token == ""
}

func (x xmlShare) share() Share {
	stime, _ := strconv.ParseInt(strings.TrimSpace(x.STime), 10, 64)

	return Share{
		ID:          strings.TrimSpace(x.ID),
		ShareType:   atoi(x.ShareType),
		Permissions: atoi(x.Permissions),
		Expiration:  normalizeDate(x.Expiration),
		Path:        x.Path,
		URL:         strings.TrimSpace(x.URL),
		Token:       x.Token,
		ItemType:    x.ItemType,
		FileTarget:  x.FileTarget,
		Owner:       x.Owner,
		CreatedAt:   stime,
	}
}

// parseShares decodes the data block of a listing response. A JSON body
// without a data block yields no shares.
func parseShares(body []byte) ([]Share, error) {
	if gjson.ValidBytes(body) {
		return parseSharesJSON(body), nil
	}

	return parseSharesXML(body)
}

func parseSharesJSON(body []byte) []Share {
	data := gjson.GetBytes(body, "ocs.data")

	switch {
	case data.IsArray():
		items := data.Array()
		shares := make([]Share, 0, len(items))

		for _, item := range items {
			shares = append(shares, shareFromJSON(item))
		}

		return shares
	case data.IsObject():
		return []Share{shareFromJSON(data)}
	}

	return nil
}

func shareFromJSON(r gjson.Result) Share {
	return Share{
		ID:          r.Get("id").String(),
		ShareType:   int(r.Get("share_type").Int()),
		Permissions: int(r.Get("permissions").Int()),
		Expiration:  normalizeDate(r.Get("expiration").String()),
		Path:        r.Get("path").String(),
		URL:         r.Get("url").String(),
		Token:       r.Get("token").String(),
		ItemType:    r.Get("item_type").String(),
		FileTarget:  r.Get("file_target").String(),
		Owner:       r.Get("uid_owner").String(),
		CreatedAt:   r.Get("stime").Int(),
	}
}

func parseSharesXML(body []byte) ([]Share, error) {
	var env xmlEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrParse, err)
	}

	if len(env.Data.Elements) > 0 {
		shares := make([]Share, 0, len(env.Data.Elements))
		for _, el := range env.Data.Elements {
			shares = append(shares, el.share())
		}

		return shares, nil
	}

	if env.Data.xmlShare.empty() {
		return nil, nil
	}

	return []Share{env.Data.xmlShare.share()}, nil
}

// extractURL returns the link URL of a creation response: ocs.data.url
// for JSON, the first <url> element anywhere for XML.
func extractURL(body []byte) (string, error) {
	if gjson.ValidBytes(body) {
		if link := gjson.GetBytes(body, "ocs.data.url").String(); link != "" {
			return link, nil
		}

		return "", apperrors.ErrUnparseableResponse
	}

	link, err := findXMLElement(body, "url")
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrUnparseableResponse, err)
	}

	if link == "" {
		return "", apperrors.ErrUnparseableResponse
	}

	return link, nil
}

// findXMLElement returns the trimmed text of the first element named
// name, or "" when the document has none.
func findXMLElement(body []byte, name string) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return "", nil
		}

		if err != nil {
			return "", fmt.Errorf("%w: %v", apperrors.ErrParse, err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != name {
			continue
		}

		var text string
		if err := dec.DecodeElement(&text, &se); err != nil {
			return "", fmt.Errorf("%w: %v", apperrors.ErrParse, err)
		}

		return strings.TrimSpace(text), nil
	}
}

// metaStatusCode returns the OCS meta status code of a response body, or
// 0 when the body has none.
func metaStatusCode(body []byte) int {
	if gjson.ValidBytes(body) {
		return int(gjson.GetBytes(body, "ocs.meta.statuscode").Int())
	}

	code, err := findXMLElement(body, "statuscode")
	if err != nil {
		return 0
	}

	return atoi(code)
}

// normalizeDate reduces a server expiration to YYYY-MM-DD. Servers send
// either a bare date or a date followed by a time.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 && (s[10] == ' ' || s[10] == 'T') {
		return s[:10]
	}

	return s
}

// Package auth implements the device-bound authentication flow: the PKCE
// login session, the registration exchange that turns an authorization code
// into device credentials, and the bearer-token refresh lifecycle.
package auth

import (
	"net/url"
	"time"

	aaxerrors "github.com/mkb69/aaxconnect/internal/errors"
	"github.com/mkb69/aaxconnect/internal/pkce"
)

// Device profile constants sent at registration. The device type id also
// feeds client-id derivation and voucher key derivation, so it must match the
// profile the vendor expects.
const (
	DeviceType      = "A2CZJZGLK2JJVM"
	appName         = "Audible"
	appVersion      = "3.56.2"
	deviceModel     = "iPhone"
	osVersion       = "15.0.0"
	softwareVersion = "35602678"

	deviceName = "%FIRST_NAME%%FIRST_NAME_POSSESSIVE_STRING%%DUPE_STRATEGY_1ST%Audible for iPhone"
)

// authorizationCodeParam is the query parameter carrying the code on the
// completed-login redirect.
const authorizationCodeParam = "openid.oa2.authorization_code"

// Session is one in-flight login attempt. It pins the PKCE verifier and
// device serial so that the values used to build the authorization URL are
// the same ones handed to the registration exchange; the vendor rejects the
// exchange otherwise. Sessions are independent values, so concurrent logins
// do not interfere. Discard after one registration attempt, successful or not.
type Session struct {
	CodeVerifier  string
	CodeChallenge string
	DeviceSerial  string
	ClientID      string

	Domain        string // store top-level domain, e.g. "com", "de"
	CountryCode   string // lowercase marketplace country code, e.g. "us"
	MarketplaceID string
	WithUsername  bool

	CreatedAt time.Time
}

// NewSession creates a login session with fresh PKCE material and a fresh
// device serial.
func NewSession(domain, countryCode, marketplaceID string, withUsername bool) (*Session, error) {
	verifier, err := pkce.CreateCodeVerifier(pkce.DefaultVerifierLength)
	if err != nil {
		return nil, err
	}
	serial := pkce.BuildDeviceSerial()

	return &Session{
		CodeVerifier:  verifier,
		CodeChallenge: pkce.CodeChallenge(verifier),
		DeviceSerial:  serial,
		ClientID:      pkce.BuildClientID(serial, DeviceType),
		Domain:        domain,
		CountryCode:   countryCode,
		MarketplaceID: marketplaceID,
		WithUsername:  withUsername,
		CreatedAt:     time.Now(),
	}, nil
}

// AuthorizeURL builds the browser login URL for this session.
func (s *Session) AuthorizeURL() string {
	base := "https://www.amazon." + s.Domain
	if s.WithUsername {
		base = "https://www.audible." + s.Domain
	}

	q := url.Values{}
	q.Set("openid.oa2.response_type", "code")
	q.Set("openid.oa2.code_challenge_method", "S256")
	q.Set("openid.oa2.code_challenge", s.CodeChallenge)
	q.Set("openid.oa2.client_id", "device:"+s.ClientID)
	q.Set("openid.oa2.scope", "device_auth_access")
	q.Set("openid.return_to", base+"/ap/maplanding")
	q.Set("openid.assoc_handle", "amzn_audible_ios_"+s.CountryCode)
	q.Set("openid.identity", "http://specs.openid.net/auth/2.0/identifier_select")
	q.Set("openid.claimed_id", "http://specs.openid.net/auth/2.0/identifier_select")
	q.Set("openid.mode", "checkid_setup")
	q.Set("openid.ns", "http://specs.openid.net/auth/2.0")
	q.Set("openid.ns.oa2", "http://www.amazon.com/ap/ext/oauth/2")
	q.Set("openid.ns.pape", "http://specs.openid.net/extensions/pape/1.0")
	q.Set("openid.pape.max_auth_age", "0")
	q.Set("marketPlaceId", s.MarketplaceID)
	q.Set("pageId", "amzn_audible_ios")
	q.Set("accountStatusPolicy", "P1")
	q.Set("forceMobileLayout", "true")

	return base + "/ap/signin?" + q.Encode()
}

// ParseRedirect extracts the authorization code from the completed-login
// redirect URL. A redirect without the code parameter is a hard failure.
func ParseRedirect(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", aaxerrors.InvalidURL("cannot parse redirect URL")
	}
	code := u.Query().Get(authorizationCodeParam)
	if code == "" {
		return "", aaxerrors.InvalidURL("redirect URL has no " + authorizationCodeParam)
	}
	return code, nil
}

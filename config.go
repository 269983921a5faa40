package authclient

import (
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"gopkg.in/yaml.v3"
)

// ProfilePolicy decides what a failed profile fetch means for the session.
type ProfilePolicy string

const (
	// PolicySurface returns the failure and keeps the token.
	PolicySurface ProfilePolicy = "surface"
	// PolicyLogout treats the failure as proof the token is invalid.
	PolicyLogout ProfilePolicy = "logout"
)

// IsValid reports whether p is a known policy.
func (p ProfilePolicy) IsValid() bool {
	return p == PolicySurface || p == PolicyLogout
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ProfilePolicy) UnmarshalText(text []byte) error {
	policy := ProfilePolicy(strings.ToLower(strings.TrimSpace(string(text))))
	if !policy.IsValid() {
		return fmt.Errorf("unknown profile policy %q", string(text))
	}
	*p = policy
	return nil
}

// Variant names a deployment preset.
type Variant string

const (
	VariantAdminConsole Variant = "admin"
	VariantPublicPortal Variant = "portal"
)

const DefaultLoginFailureMessage = "登入失敗"

// Options is the default Config implementation. Zero values fall back to
// defaults when read through the getters.
type Options struct {
	Variant              Variant       `yaml:"variant"`
	BaseURL              string        `yaml:"base_url"`
	LoginEndpoint        string        `yaml:"login_endpoint"`
	ProfileEndpoint      string        `yaml:"profile_endpoint"`
	LogoutEndpoint       string        `yaml:"logout_endpoint"`
	TokenKey             string        `yaml:"token_key"`
	DeviceKey            string        `yaml:"device_key"`
	UserAgent            string        `yaml:"user_agent"`
	LoginFailureMessage  string        `yaml:"login_failure_message"`
	ProfilePolicy        ProfilePolicy `yaml:"profile_policy"`
	ProfileCheck         bool          `yaml:"profile_check"`
	DiscardExpiredTokens bool          `yaml:"discard_expired_tokens"`
	LoginRouteName       string        `yaml:"login_route_name"`
	LoginPath            string        `yaml:"login_path"`
	LandingRouteName     string        `yaml:"landing_route_name"`
	LandingPath          string        `yaml:"landing_path"`
	RedirectParam        string        `yaml:"redirect_param"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
}

var _ Config = Options{}

// AdminConsoleOptions returns the admin console preset: failures to fetch the
// profile are surfaced and the guard never fetches profiles itself.
func AdminConsoleOptions() Options {
	return Options{
		Variant:          VariantAdminConsole,
		BaseURL:          "http://localhost:8000",
		TokenKey:         "mcs_token",
		DeviceKey:        "mcs_device_id",
		ProfilePolicy:    PolicySurface,
		ProfileCheck:     false,
		LandingRouteName: "dashboard",
		LandingPath:      "/",
	}
}

// PublicPortalOptions returns the portal preset: a failed profile fetch logs
// the user out and the guard completes missing profiles before protected routes.
func PublicPortalOptions() Options {
	return Options{
		Variant:          VariantPublicPortal,
		BaseURL:          "http://localhost:8000",
		TokenKey:         "token",
		DeviceKey:        "device_id",
		ProfilePolicy:    PolicyLogout,
		ProfileCheck:     true,
		LandingRouteName: "home",
		LandingPath:      "/",
	}
}

// OptionsForVariant returns the preset named by v.
func OptionsForVariant(v Variant) (Options, error) {
	switch Variant(strings.ToLower(string(v))) {
	case VariantAdminConsole, "":
		return AdminConsoleOptions(), nil
	case VariantPublicPortal:
		return PublicPortalOptions(), nil
	default:
		return Options{}, fmt.Errorf("unknown variant %q", v)
	}
}

// LoadOptions reads a YAML options file. Values in the file override the
// preset named by its variant key. Environment variables are expanded.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read config file: %w", err)
	}
	return ParseOptions([]byte(os.ExpandEnv(string(data))))
}

// ParseOptions decodes YAML options on top of the preset they name.
func ParseOptions(data []byte) (Options, error) {
	var head struct {
		Variant Variant `yaml:"variant"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return Options{}, fmt.Errorf("unmarshal config: %w", err)
	}

	opts, err := OptionsForVariant(head.Variant)
	if err != nil {
		return Options{}, err
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return Options{}, fmt.Errorf("invalid config: %w", err)
	}

	return opts, nil
}

// Validate checks the options are usable.
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.BaseURL, validation.Required),
		validation.Field(&o.TokenKey, validation.Required),
		validation.Field(&o.DeviceKey, validation.Required),
		validation.Field(&o.ProfilePolicy, validation.By(func(value any) error {
			policy, _ := value.(ProfilePolicy)
			if policy == "" || policy.IsValid() {
				return nil
			}
			return fmt.Errorf("must be %q or %q", PolicySurface, PolicyLogout)
		})),
		validation.Field(&o.RequestTimeout, validation.Min(time.Duration(0))),
	)
}

func (o Options) GetVariant() Variant {
	if o.Variant == "" {
		return VariantAdminConsole
	}
	return o.Variant
}

func (o Options) GetBaseURL() string {
	return o.BaseURL
}

func (o Options) GetLoginEndpoint() string {
	return orDefault(o.LoginEndpoint, "/api/auth/login")
}

func (o Options) GetProfileEndpoint() string {
	return orDefault(o.ProfileEndpoint, "/api/auth/me")
}

func (o Options) GetLogoutEndpoint() string {
	return orDefault(o.LogoutEndpoint, "/api/auth/logout")
}

func (o Options) GetTokenKey() string {
	return orDefault(o.TokenKey, "token")
}

func (o Options) GetDeviceKey() string {
	return orDefault(o.DeviceKey, "device_id")
}

func (o Options) GetUserAgent() string {
	return orDefault(o.UserAgent, "go-auth-client")
}

func (o Options) GetLoginFailureMessage() string {
	return orDefault(o.LoginFailureMessage, DefaultLoginFailureMessage)
}

func (o Options) GetProfilePolicy() ProfilePolicy {
	if !o.ProfilePolicy.IsValid() {
		return PolicySurface
	}
	return o.ProfilePolicy
}

func (o Options) GetProfileCheck() bool {
	return o.ProfileCheck
}

func (o Options) GetDiscardExpiredTokens() bool {
	return o.DiscardExpiredTokens
}

func (o Options) GetLoginRouteName() string {
	return orDefault(o.LoginRouteName, "login")
}

func (o Options) GetLoginPath() string {
	return orDefault(o.LoginPath, "/login")
}

func (o Options) GetLandingRouteName() string {
	return orDefault(o.LandingRouteName, "home")
}

func (o Options) GetLandingPath() string {
	return orDefault(o.LandingPath, "/")
}

func (o Options) GetRedirectParam() string {
	return orDefault(o.RedirectParam, "redirect")
}

func (o Options) GetRequestTimeout() time.Duration {
	if o.RequestTimeout <= 0 {
		return 15 * time.Second
	}
	return o.RequestTimeout
}

func orDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

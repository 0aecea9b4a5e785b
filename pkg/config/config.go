package config

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/Layr-Labs/walletlink-go/pkg/address"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for walletlink configuration
const (
	EnvWalletLinkScheme         = "WALLETLINK_SCHEME"
	EnvWalletLinkCallbackScheme = "WALLETLINK_CALLBACK_SCHEME"
	EnvWalletLinkDebug          = "WALLETLINK_DEBUG"

	EnvWalletLinkSignerType     = "WALLETLINK_SIGNER_TYPE"
	EnvWalletLinkPrivateKeys    = "WALLETLINK_PRIVATE_KEYS"
	EnvWalletLinkKeystoreDir    = "WALLETLINK_KEYSTORE_DIR"
	EnvWalletLinkKeystorePass   = "WALLETLINK_KEYSTORE_PASSWORD"
	EnvWalletLinkDefaultAccount = "WALLETLINK_DEFAULT_ACCOUNT"
	EnvWalletLinkKMSKeyId       = "WALLETLINK_KMS_KEY_ID"
	EnvWalletLinkAWSRegion      = "WALLETLINK_AWS_REGION"
	EnvWalletLinkRPCEndpoint    = "WALLETLINK_RPC_ENDPOINT"
	EnvWalletLinkChainID        = "WALLETLINK_CHAIN_ID"

	EnvWalletLinkJournalType   = "WALLETLINK_JOURNAL_TYPE"
	EnvWalletLinkBadgerPath    = "WALLETLINK_BADGER_PATH"
	EnvWalletLinkRedisAddress  = "WALLETLINK_REDIS_ADDRESS"
	EnvWalletLinkRedisPassword = "WALLETLINK_REDIS_PASSWORD"
	EnvWalletLinkRedisDB       = "WALLETLINK_REDIS_DB"

	EnvWalletLinkBridgeHost      = "WALLETLINK_BRIDGE_HOST"
	EnvWalletLinkBridgePort      = "WALLETLINK_BRIDGE_PORT"
	EnvWalletLinkBridgeRateLimit = "WALLETLINK_BRIDGE_RATE_LIMIT"
	EnvWalletLinkBridgeBurst     = "WALLETLINK_BRIDGE_BURST"
	EnvWalletLinkBridgeURL       = "WALLETLINK_BRIDGE_URL"
)

const (
	DefaultScheme         = "trust"
	DefaultCallbackScheme = "app"
	DefaultBridgeHost     = "127.0.0.1"
	DefaultBridgePort     = 7545
)

type SignerType string

const (
	SignerTypeLocal    SignerType = "local"
	SignerTypeKeystore SignerType = "keystore"
	SignerTypeKMS      SignerType = "kms"
	SignerTypeRPC      SignerType = "rpc"
)

func (s SignerType) String() string {
	return string(s)
}

type JournalType string

const (
	JournalTypeNone   JournalType = "none"
	JournalTypeMemory JournalType = "memory"
	JournalTypeBadger JournalType = "badger"
	JournalTypeRedis  JournalType = "redis"
)

func (j JournalType) String() string {
	return string(j)
}

// RFC 3986 scheme: a letter followed by letters, digits, "+", "-" or "."
var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*$`)

// IsValidScheme reports whether s can be used as a URL scheme
func IsValidScheme(s string) bool {
	return schemePattern.MatchString(s)
}

type SignerConfig struct {
	Type SignerType `json:"type"`

	// local
	PrivateKeys []string `json:"-"`

	// keystore
	KeystoreDir string `json:"keystore_dir"`
	Password    string `json:"-"`

	// local and keystore
	DefaultAccount string `json:"default_account"`

	// kms
	KMSKeyId  string `json:"kms_key_id"`
	AWSRegion string `json:"aws_region"`

	// rpc
	RPCEndpoint string `json:"rpc_endpoint"`

	// ChainID selects EIP-155 transaction signing. Zero signs with the homestead rules.
	ChainID uint64 `json:"chain_id"`
}

// ChainIDBig returns the chain id as a big.Int, or nil when unset
func (c *SignerConfig) ChainIDBig() *big.Int {
	if c.ChainID == 0 {
		return nil
	}
	return new(big.Int).SetUint64(c.ChainID)
}

func (c *SignerConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList

	switch c.Type {
	case SignerTypeLocal:
		if len(c.PrivateKeys) == 0 {
			allErrors = append(allErrors, field.Required(path.Child("privateKeys"), "at least one private key is required for the local signer"))
		}
	case SignerTypeKeystore:
		if c.KeystoreDir == "" {
			allErrors = append(allErrors, field.Required(path.Child("keystoreDir"), "keystoreDir is required for the keystore signer"))
		}
	case SignerTypeKMS:
		if c.KMSKeyId == "" {
			allErrors = append(allErrors, field.Required(path.Child("kmsKeyId"), "kmsKeyId is required for the kms signer"))
		}
	case SignerTypeRPC:
		if c.RPCEndpoint == "" {
			allErrors = append(allErrors, field.Required(path.Child("rpcEndpoint"), "rpcEndpoint is required for the rpc signer"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), c.Type,
			[]SignerType{SignerTypeLocal, SignerTypeKeystore, SignerTypeKMS, SignerTypeRPC}))
	}

	if c.DefaultAccount != "" {
		if _, err := address.Parse(c.DefaultAccount); err != nil {
			allErrors = append(allErrors, field.Invalid(path.Child("defaultAccount"), c.DefaultAccount, err.Error()))
		}
	}
	return allErrors
}

type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type JournalConfig struct {
	Type       JournalType `json:"type"`
	BadgerPath string      `json:"badger_path"`
	Redis      RedisConfig `json:"redis"`
}

func (c *JournalConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList

	switch c.Type {
	case "", JournalTypeNone, JournalTypeMemory:
	case JournalTypeBadger:
		if c.BadgerPath == "" {
			allErrors = append(allErrors, field.Required(path.Child("badgerPath"), "badgerPath is required for the badger journal"))
		}
	case JournalTypeRedis:
		if c.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(path.Child("redis", "address"), "address is required for the redis journal"))
		}
		if c.Redis.DB < 0 {
			allErrors = append(allErrors, field.Invalid(path.Child("redis", "db"), c.Redis.DB, "must not be negative"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), c.Type,
			[]JournalType{JournalTypeNone, JournalTypeMemory, JournalTypeBadger, JournalTypeRedis}))
	}
	return allErrors
}

type BridgeConfig struct {
	Host      string  `json:"host"`
	Port      int     `json:"port"`
	RateLimit float64 `json:"rate_limit"`
	Burst     int     `json:"burst"`
}

// Address returns host:port for the bridge
func (c *BridgeConfig) Address() string {
	host := c.Host
	if host == "" {
		host = DefaultBridgeHost
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

func (c *BridgeConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	if c.Port < 0 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(path.Child("port"), c.Port, "port must be between 0-65535"))
	}
	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(path.Child("rateLimit"), c.RateLimit, "must not be negative"))
	}
	if c.RateLimit > 0 && c.Burst < 1 {
		allErrors = append(allErrors, field.Invalid(path.Child("burst"), c.Burst, "burst must be at least 1 when rate limiting is enabled"))
	}
	return allErrors
}

// WalletLinkConfig is the complete configuration of a walletlink process
type WalletLinkConfig struct {
	// Scheme the signer app is registered under
	Scheme string `json:"scheme"`
	// CallbackScheme the requesting app is registered under
	CallbackScheme string `json:"callback_scheme"`

	Debug bool `json:"debug"`

	Signer  SignerConfig  `json:"signer"`
	Journal JournalConfig `json:"journal"`
	Bridge  BridgeConfig  `json:"bridge"`
}

// NewDefaultConfig returns a config with the default schemes and bridge address
func NewDefaultConfig() *WalletLinkConfig {
	return &WalletLinkConfig{
		Scheme:         DefaultScheme,
		CallbackScheme: DefaultCallbackScheme,
		Signer: SignerConfig{
			Type: SignerTypeLocal,
		},
		Journal: JournalConfig{
			Type: JournalTypeNone,
		},
		Bridge: BridgeConfig{
			Host: DefaultBridgeHost,
			Port: DefaultBridgePort,
		},
	}
}

// ValidateSchemes checks only the scheme settings, for commands that never sign
func (c *WalletLinkConfig) ValidateSchemes() error {
	if allErrors := c.validateSchemes(); len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func (c *WalletLinkConfig) validateSchemes() field.ErrorList {
	var allErrors field.ErrorList
	if c.Scheme == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("scheme"), "scheme is required"))
	} else if !IsValidScheme(c.Scheme) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("scheme"), c.Scheme, "not a valid URL scheme"))
	}
	if c.CallbackScheme == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("callbackScheme"), "callbackScheme is required"))
	} else if !IsValidScheme(c.CallbackScheme) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("callbackScheme"), c.CallbackScheme, "not a valid URL scheme"))
	}
	return allErrors
}

// ValidateJournal checks only the journal settings
func (c *WalletLinkConfig) ValidateJournal() error {
	if allErrors := c.Journal.validate(field.NewPath("journal")); len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// Validate validates the full configuration
func (c *WalletLinkConfig) Validate() error {
	allErrors := c.validateSchemes()
	allErrors = append(allErrors, c.Signer.validate(field.NewPath("signer"))...)
	allErrors = append(allErrors, c.Journal.validate(field.NewPath("journal"))...)
	allErrors = append(allErrors, c.Bridge.validate(field.NewPath("bridge"))...)

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

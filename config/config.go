package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
)

// Escrow constants. Lock ends are always aligned down to an epoch boundary,
// and a lock's weight decays against MaxLockDuration, not its own duration.
const (
	Epoch           uint64 = 7 * 24 * 60 * 60
	MinLockDuration uint64 = Epoch
	MaxLockDuration uint64 = 4 * 365 * 24 * 60 * 60

	MaxOperations = 15

	// Precision is the denominator for percentage params such as the
	// approval threshold and the quorum ratio.
	Precision uint64 = 1_000_000
)

// Timelock windows, in seconds of block time.
const (
	TimelockDelay       uint64 = 2 * 24 * 60 * 60
	TimelockGracePeriod uint64 = 14 * 24 * 60 * 60
)

// Bounds for the guardian-settable governance params.
const (
	MinVotingDelay  uint64 = 1
	MaxVotingDelay  uint64 = 50_400 // ~1 week of blocks at 12s
	MinVotingPeriod uint64 = 300
	MaxVotingPeriod uint64 = 201_600 // ~4 weeks of blocks at 12s
)

// GovParams are the live governance parameters. They are part of consensus
// state (carried in the state header) so that guardian updates replay
// deterministically; the values here are only the genesis defaults.
type GovParams struct {
	VotingDelay           uint64   `json:"votingDelay"`           // blocks between propose and earliest activation
	VotingPeriod          uint64   `json:"votingPeriod"`          // blocks the vote stays open after activation
	ActivationGracePeriod uint64   `json:"activationGracePeriod"` // blocks after startHeight before an unactivated proposal expires
	ProposalThreshold     *big.Int `json:"proposalThreshold"`     // minimum voting power to propose (and to stay proposer)
	QuorumPct             uint64   `json:"quorumPct"`             // of total voting power, Precision-denominated
	ApprovalThresholdPct  uint64   `json:"approvalThresholdPct"`  // for/(for+against), Precision-denominated
	MinSupply             *big.Int `json:"minSupply"`             // emergency brake: no proposing below this total power
	Guardian              string   `json:"guardian"`              // hex address of the veto guardian / param admin
}

func DefaultGovParams() GovParams {
	return GovParams{
		VotingDelay:           10,
		VotingPeriod:          3000,
		ActivationGracePeriod: 7200,
		ProposalThreshold:     new(big.Int).SetUint64(100 * GWei),
		QuorumPct:             200_000, // 20%
		ApprovalThresholdPct:  510_000, // 51%
		MinSupply:             new(big.Int).SetUint64(1000 * GWei),
	}
}

// Validate bounds-checks the settable params.
func (p GovParams) Validate() error {
	if p.VotingDelay < MinVotingDelay || p.VotingDelay > MaxVotingDelay {
		return fmt.Errorf("voting delay %d out of [%d,%d]", p.VotingDelay, MinVotingDelay, MaxVotingDelay)
	}
	if p.VotingPeriod < MinVotingPeriod || p.VotingPeriod > MaxVotingPeriod {
		return fmt.Errorf("voting period %d out of [%d,%d]", p.VotingPeriod, MinVotingPeriod, MaxVotingPeriod)
	}
	if p.QuorumPct > Precision {
		return fmt.Errorf("quorum pct %d above precision %d", p.QuorumPct, Precision)
	}
	if p.ApprovalThresholdPct > Precision {
		return fmt.Errorf("approval threshold pct %d above precision %d", p.ApprovalThresholdPct, Precision)
	}
	if p.ProposalThreshold == nil || p.ProposalThreshold.Sign() < 0 {
		return fmt.Errorf("invalid proposal threshold")
	}
	if p.MinSupply == nil || p.MinSupply.Sign() < 0 {
		return fmt.Errorf("invalid min supply")
	}
	return nil
}

const GWei uint64 = 1_000_000_000

func GWeiPerPower(height uint64) uint64 {
	return GWei
}

// PowerPerStake maps a locked amount to cometbft validator power. The
// validator set follows the custody balance, not decayed voting power.
func PowerPerStake(locked *big.Int, height uint64) int64 {
	if locked == nil || locked.Sign() <= 0 {
		return 0
	}
	p := new(big.Int).Div(locked, new(big.Int).SetUint64(GWeiPerPower(height)))
	if !p.IsInt64() {
		return 0
	}
	return p.Int64()
}

type GovAppConfig struct {
	Home          string `mapstructure:"-"`
	TimeoutCommit uint64 `mapstructure:"-"`

	// IndexerListenAddr is where the gin read API serves; empty disables it.
	IndexerListenAddr string `mapstructure:"indexer_listen_addr"`
}

func DefaultGovAppConfig(home string) *GovAppConfig {
	return &GovAppConfig{
		Home:              home,
		IndexerListenAddr: "127.0.0.1:8555",
	}
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *GovAppConfig `mapstructure:"app"`
}

func DefaultConfig(home string) *Config {
	if len(home) == 0 {
		home = os.ExpandEnv("$HOME/.parsgov")
	}
	cfg := &Config{
		DefaultCometConfig(),
		DefaultGovAppConfig(home),
	}
	cfg.RootDir = home
	_ = os.MkdirAll(home+"/config", 0755)
	return cfg
}

func NewGovConfig(home string) *Config {
	if len(home) == 0 {
		home = os.ExpandEnv("$HOME/.parsgov")
	}
	_ = os.MkdirAll(home+"/config", 0755)
	cfg := &Config{
		DefaultCometConfig(),
		DefaultGovAppConfig(home),
	}
	cfg.RootDir = home
	return cfg
}

func InitializeNodeValidatorFiles(cfg *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(cfg.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := cfg.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := cfg.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

func DefaultCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 10
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	return cometConfig
}

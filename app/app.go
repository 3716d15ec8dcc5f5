package app

import (
	"context"
	"encoding/json"
	"math/big"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"

	"github.com/parsdao/pars-gov/config"
	"github.com/parsdao/pars-gov/state"
	"github.com/parsdao/pars-gov/timelock"
	"github.com/parsdao/pars-gov/tx"
	"github.com/parsdao/pars-gov/tx/handler"
)

type finalizeBlock struct {
	Height uint64
	Hash   common.Hash
}

func (b *finalizeBlock) Set(blk *abcitypes.RequestFinalizeBlock) {
	b.Height = uint64(blk.Height)
	b.Hash = common.BytesToHash(blk.Hash)
}

// GenesisAppState is the app_state section of the genesis doc. Missing
// params fall back to the defaults.
type GenesisAppState struct {
	Params *config.GovParams `json:"params,omitempty"`
}

var _ abcitypes.Application = &GovApp{}

type GovApp struct {
	cfg    *config.GovAppConfig
	logger cmtlog.Logger

	db       *state.StateDB
	executor *timelock.RecordingExecutor
	lockbox  *timelock.Lockbox
	lastBlk  finalizeBlock
	txHdlrs  map[tx.GovTxType]handler.TxHandler
	queriers map[string]Querier

	st *state.State
}

func NewGovApp(cfg *config.GovAppConfig, logger cmtlog.Logger) (app *GovApp, err error) {
	logger = logger.With("module", "app")

	executor := timelock.NewRecordingExecutor()
	lockbox := timelock.NewLockbox(config.TimelockDelay, config.TimelockGracePeriod, executor, logger)
	dir := cfg.Home + "/data"
	db, err := state.NewStateDB(dir, lockbox, executor, logger)
	if err != nil {
		return nil, err
	}

	app = &GovApp{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		executor: executor,
		lockbox:  lockbox,
		txHdlrs:  make(map[tx.GovTxType]handler.TxHandler),
		queriers: make(map[string]Querier),
	}
	app.registerTxHandler()
	app.registerQuerier()
	return
}

func (app *GovApp) Start(bs *store.BlockStore) {
	height := app.db.Header().Height
	if height > 0 {
		blk := bs.LoadBlock(int64(height))
		if blk == nil {
			panic("unexpected BlockStore")
		}
		app.lastBlk.Height = height
		app.lastBlk.Hash = common.BytesToHash(blk.Hash())
	}
}

func (app *GovApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("gov app stopped")
}

func (app *GovApp) StateDB() *state.StateDB {
	return app.db
}

func (app *GovApp) registerTxHandler() {
	lockHdlr := handler.NewLockTxHandler(app.logger)
	proposalHdlr := handler.NewProposalTxHandler(app.logger)
	voteHdlr := handler.NewVoteTxHandler(app.logger)
	executionHdlr := handler.NewExecutionTxHandler(app.logger)
	app.txHdlrs = map[tx.GovTxType]handler.TxHandler{
		tx.GovTxTypeCreateLock:     lockHdlr,
		tx.GovTxTypeIncreaseAmount: lockHdlr,
		tx.GovTxTypeExtendLock:     lockHdlr,
		tx.GovTxTypeWithdraw:       lockHdlr,
		tx.GovTxTypeDelegate:       handler.NewDelegateTxHandler(app.logger),
		tx.GovTxTypePropose:        proposalHdlr,
		tx.GovTxTypeActivate:       proposalHdlr,
		tx.GovTxTypeCastVote:       voteHdlr,
		tx.GovTxTypeCastVoteBySig:  voteHdlr,
		tx.GovTxTypeQueue:          executionHdlr,
		tx.GovTxTypeExecute:        executionHdlr,
		tx.GovTxTypeCancel:         executionHdlr,
		tx.GovTxTypeVeto:           executionHdlr,
		tx.GovTxTypeSetParams:      handler.NewParamsTxHandler(app.logger),
	}
}

func (app *GovApp) registerQuerier() {
	app.queriers["/accounts/"] = NewAccountQuerier(app.db, app.logger)
	app.queriers["/validators/"] = NewValidatorQuerier(app.db, app.logger)
	app.queriers["/locks/"] = NewLockQuerier(app.db, app.logger)
	app.queriers["/power/"] = NewPowerQuerier(app.db, app.logger)
	app.queriers["/delegates/"] = NewDelegateQuerier(app.db, app.logger)
	app.queriers["/proposals/"] = NewProposalQuerier(app.db, app.logger)
	app.queriers["/supply/"] = NewSupplyQuerier(app.db, app.logger)
}

// InitChain registers an account per genesis validator and converts its
// power into a max-duration lock, so the validator set and the escrow start
// from the same custody balance.
func (app *GovApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	st := app.db.NewState()
	st.SetChainId(chain.ChainId)
	st.BeginBlock(uint64(chain.Time.Unix()))
	if len(chain.AppStateBytes) != 0 {
		var appState GenesisAppState
		if err = json.Unmarshal(chain.AppStateBytes, &appState); err != nil {
			app.logger.Error("InitChain parse app state fail", "err", err)
			return nil, err
		}
		if appState.Params != nil {
			if err = appState.Params.Validate(); err != nil {
				app.logger.Error("InitChain invalid params", "err", err)
				return nil, err
			}
			st.Header().Params = *appState.Params
		}
	}
	for _, v := range chain.Validators {
		var acnt state.Account
		acnt.SetPubKey(v.PubKey.GetEd25519())
		acnt.Balance = new(big.Int).SetUint64(uint64(v.Power) * config.GWeiPerPower(0))
		err = st.AddAccount(&acnt)
		if err != nil {
			app.logger.Error("InitChain add account fail", "err", err)
			return nil, err
		}
		ltx := &tx.CreateLockTx{
			Amount:   new(big.Int).Set(acnt.Balance),
			Duration: config.MaxLockDuration,
		}
		if _, err = st.CreateLock(ltx, acnt.Index, false); err != nil {
			app.logger.Error("InitChain create genesis lock fail", "err", err)
			return nil, err
		}
	}
	var h common.Hash
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err = app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *GovApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *GovApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *GovApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{}, nil
}

func (app *GovApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return nil, nil
}

func (app *GovApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return nil, nil
}

func (app *GovApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return nil, nil
}

func (app *GovApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return nil, nil
}

package indexer

import (
	"context"
	"errors"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"

	gov_types "github.com/parsdao/pars-gov/types"
)

// ChainIndexer tails finalized blocks over the comet RPC and mirrors
// governance events into sqlite for the read API.
type ChainIndexer struct {
	logger        cmtlog.Logger
	Url           string
	Height        int64
	db            *gorm.DB
	cli           *comethttp.HTTP
	eventHandlers map[string]eventHandler
}

func NewChainIndexer(logger cmtlog.Logger, dbPath string, chainUrl string) (*ChainIndexer, error) {
	logger.Info("NewChainIndexer", "dbPath", dbPath, "url", chainUrl)
	cli, err := comethttp.New(chainUrl, "/websocket")
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Height{}, &LockEvent{}, &Delegation{}, &Proposal{}, &Vote{}).Error; err != nil {
		return nil, err
	}
	h := Height{Id: 1}
	if err = db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c := ChainIndexer{
		logger:        logger.With("module", "indexer"),
		Url:           chainUrl,
		Height:        int64(h.Height + 1),
		db:            db,
		cli:           cli,
		eventHandlers: map[string]eventHandler{},
	}

	c.eventHandlers = map[string]eventHandler{
		gov_types.EventLockType:      c.handleEventLock,
		gov_types.EventDelegateType:  c.handleEventDelegate,
		gov_types.EventProposalType:  c.handleEventProposal,
		gov_types.EventLifecycleType: c.handleEventLifecycle,
		gov_types.EventVoteType:      c.handleEventVote,
	}
	return &c, nil
}

type eventHandler func(ctx context.Context, event abci.Event, height int64)

func (c *ChainIndexer) handleEvent(ctx context.Context, event abci.Event, height int64) {
	if h, ok := c.eventHandlers[event.Type]; ok {
		h(ctx, event, height)
	}
}

func (c *ChainIndexer) handleEventLock(ctx context.Context, event abci.Event, height int64) {
	ev := gov_types.DecodeEventLock(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	lock := LockEvent{
		Account: ev.Account,
		Op:      ev.Op,
		Amount:  ev.Amount,
		End:     ev.End,
		Votes:   ev.Votes,
		Total:   ev.Total,
		Height:  uint64(height),
	}
	if err := c.db.Save(&lock).Error; err != nil {
		c.logger.Error("save lock event fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventDelegate(ctx context.Context, event abci.Event, height int64) {
	ev := gov_types.DecodeEventDelegate(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	d := Delegation{
		Account:   ev.Account,
		Delegatee: ev.NewDelegatee,
		Height:    uint64(height),
	}
	if err := c.db.Save(&d).Error; err != nil {
		c.logger.Error("save delegation fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventProposal(ctx context.Context, event abci.Event, height int64) {
	ev := gov_types.DecodeEventProposal(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	proposal := Proposal{
		Id:              ev.ProposalId,
		ProposerAddress: ev.Proposer,
		StartHeight:     ev.StartHeight,
		Threshold:       ev.Threshold,
		Operations:      ev.Operations,
		Phase:           "pending",
		NewHeight:       uint64(height),
		CreateTimestamp: time.Now().Unix(),
	}
	if err := c.db.Save(&proposal).Error; err != nil {
		c.logger.Error("save proposal fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventLifecycle(ctx context.Context, event abci.Event, height int64) {
	ev := gov_types.DecodeEventLifecycle(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	var proposal Proposal
	if err := c.db.First(&proposal, ev.ProposalId).Error; err != nil {
		c.logger.Error("get proposal fail", "err", err)
		return
	}
	proposal.Phase = ev.Phase
	proposal.PhaseHeight = uint64(height)
	if ev.EndHeight != 0 {
		proposal.EndHeight = ev.EndHeight
	}
	if ev.Quorum != "" {
		proposal.Quorum = ev.Quorum
	}
	if ev.Eta != 0 {
		proposal.Eta = ev.Eta
	}
	if err := c.db.Save(&proposal).Error; err != nil {
		c.logger.Error("save proposal fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventVote(ctx context.Context, event abci.Event, height int64) {
	ev := gov_types.DecodeEventVote(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	vote := Vote{
		Proposal:     ev.ProposalId,
		VoterAddress: ev.Voter,
		Support:      uint64(ev.Support),
		Weight:       ev.Weight,
		Reason:       ev.Reason,
		Height:       uint64(height),
	}
	if err := c.db.Save(&vote).Error; err != nil {
		c.logger.Error("save vote fail", "err", err)
	}
}

func (c *ChainIndexer) Start(ctx context.Context) {
	var err error
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.cli == nil {
				c.cli, err = comethttp.New(c.Url, "/websocket")
				if err != nil {
					c.logger.Error("connect fail", "err", err)
					continue
				}
			}
			b, err := c.cli.Status(context.TODO())
			if err != nil {
				c.logger.Error("get status fail", "err", err)
				if !c.cli.IsRunning() {
					c.cli.Stop()
					c.cli, err = comethttp.New(c.Url, "/websocket")
					if err != nil {
						c.logger.Error("reconnect fail", "err", err)
						continue
					}
				}
				continue
			}
			for b.SyncInfo.LatestBlockHeight > c.Height {
				events, err := c.cli.BlockResults(ctx, &c.Height)
				if err != nil {
					c.logger.Error("get block results fail", "height", c.Height, "err", err)
					break
				}
				for _, res := range events.TxsResults {
					for _, event := range res.Events {
						c.handleEvent(ctx, event, c.Height)
					}
				}
				if err := c.db.Save(&Height{
					Id:     1,
					Height: uint64(c.Height),
				}).Error; err != nil {
					c.logger.Error("save height fail", "err", err)
					break
				}
				c.Height++
			}
		}
	}
}

func (c *ChainIndexer) getProposals(page int, pageSize int) ([]Proposal, uint64, error) {
	var proposals []Proposal
	var total uint64
	if err := c.db.Model(&Proposal{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := c.db.Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error; err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalById(proposalId uint64) (Proposal, error) {
	var proposal Proposal
	err := c.db.First(&proposal, proposalId).Error
	return proposal, err
}

func (c *ChainIndexer) getVotesByProposal(proposal uint64, page int, pageSize int) ([]Vote, error) {
	var votes []Vote
	err := c.db.Where("proposal = ?", proposal).Order("height asc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	return votes, err
}

func (c *ChainIndexer) getLocksByAccount(account string, page int, pageSize int) ([]LockEvent, error) {
	var locks []LockEvent
	err := c.db.Where("account = ?", account).Order("height desc").Offset(page * pageSize).Limit(pageSize).Find(&locks).Error
	return locks, err
}

func (c *ChainIndexer) getDelegation(account string) (Delegation, error) {
	var d Delegation
	err := c.db.Where("account = ?", account).Order("height desc").First(&d).Error
	return d, err
}

package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primaryKey" json:"id"`
	Height uint64 `json:"height"`
}

type LockEvent struct {
	Id      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Account string `json:"account"`
	Op      string `json:"op"`
	Amount  string `json:"amount"`
	End     uint64 `json:"end"`
	Votes   string `json:"votes"`
	Total   string `json:"total"`
	Height  uint64 `json:"height"`
}

type Delegation struct {
	Id        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Account   string `json:"account"`
	Delegatee string `json:"delegatee"`
	Height    uint64 `json:"height"`
}

type Proposal struct {
	Id              uint64 `gorm:"primaryKey" json:"id"`
	ProposerAddress string `json:"proposer_address"`
	StartHeight     uint64 `json:"start_height"`
	EndHeight       uint64 `json:"end_height"`
	Threshold       string `json:"threshold"`
	Quorum          string `json:"quorum"`
	Operations      uint64 `json:"operations"`
	Phase           string `json:"phase"`
	Eta             uint64 `json:"eta"`
	NewHeight       uint64 `json:"new_height"`
	PhaseHeight     uint64 `json:"phase_height"`
	CreateTimestamp int64  `json:"create_timestamp"`
}

type Vote struct {
	Id           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Proposal     uint64 `json:"proposal"`
	VoterAddress string `json:"voter_address"`
	Support      uint64 `json:"support"`
	Weight       string `json:"weight"`
	Reason       string `json:"reason"`
	Height       uint64 `json:"height"`
}

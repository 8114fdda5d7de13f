package contractgateway

// Epoch is the registry contract's current epoch tag: a sequence number
// and the block height at which it takes effect.
type Epoch struct {
	Seq    int64 `json:"seq"`
	Height int64 `json:"height"`
}

// VotingStatus is a slash proposal's current voting state.
type VotingStatus string

const (
	VotingOpen   VotingStatus = "open"
	VotingClosed VotingStatus = "closed"
)

// SlashProposal nominates a validator for penalty; other validators vote
// For or Against it.
type SlashProposal struct {
	ID     string       `json:"id"`
	Owner  string       `json:"owner"`
	Status VotingStatus `json:"status"`
	Voted  []string     `json:"voted"`
}

// HasVoted reports whether address already voted on this proposal.
func (p SlashProposal) HasVoted(address string) bool {
	for _, v := range p.Voted {
		if v == address {
			return true
		}
	}
	return false
}

// ContractState is the registry contract's current view of the network.
type ContractState struct {
	Epoch               Epoch           `json:"epoch"`
	NominatedValidators  []string        `json:"nominated_validators"`
	SlashProposals       []SlashProposal `json:"slash_proposals"`
}

// IsNominated reports whether address is currently nominated as cosigner.
func (s ContractState) IsNominated(address string) bool {
	for _, v := range s.NominatedValidators {
		if v == address {
			return true
		}
	}
	return false
}

// Vote is a validator's decision on a slash proposal.
type Vote string

const (
	VoteFor     Vote = "for"
	VoteAgainst Vote = "against"
)

type voteRequest struct {
	Tx   string `json:"tx"`
	Vote Vote   `json:"vote"`
}

type voteResponse struct {
	Status string `json:"status"`
}

// Package vault is the treasury action module: named balances held in an
// account's managed storage, deposited into directly and spent only through
// approved intents. A vault referenced by a pending spend intent is locked,
// so side-channel withdrawals fail until the intent completes or expires.
package vault

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/covenant-labs/covenant/pkg/account"
	"github.com/covenant-labs/covenant/pkg/auth"
	"github.com/covenant-labs/covenant/pkg/intents"
)

var (
	ErrVaultNotFound     = errors.New("vault not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownCoin       = errors.New("coin type not held by this vault")
)

// Witness identifies this module as the constructor of its intents.
type Witness struct{}

// Name is the module's registered extension name.
const Name = "VaultActions"

// Version is the module's current package version.
const Version = "1.0.0"

// Addr returns the module's package address.
func Addr() string {
	addr, err := auth.AddrOf(Witness{})
	if err != nil {
		panic(err)
	}
	return addr
}

func versionWitness() auth.VersionWitness {
	vw, err := auth.NewVersionWitness(Witness{}, Version)
	if err != nil {
		panic(err)
	}
	return vw
}

// Vault is one named treasury with per-coin balances.
type Vault struct {
	ID       string
	Name     string
	Balances map[string]uint64
}

// SpendAction transfers an amount out of a vault to a recipient.
type SpendAction struct {
	VaultID   string `json:"vault_id"`
	Coin      string `json:"coin"`
	Amount    uint64 `json:"amount"`
	Recipient string `json:"recipient"`
}

// Open creates a vault in the account's managed storage and returns its id.
func Open[C any, O intents.Outcome[O]](acct *account.Account[C, O], name string) (string, error) {
	v := &Vault{ID: uuid.NewString(), Name: name, Balances: make(map[string]uint64)}
	if err := acct.ManageObject(v.ID, v, versionWitness()); err != nil {
		return "", err
	}
	return v.ID, nil
}

// Get returns the vault stored under vaultID.
func Get[C any, O intents.Outcome[O]](acct *account.Account[C, O], vaultID string) (*Vault, error) {
	value, err := acct.BorrowObject(vaultID, versionWitness())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVaultNotFound, vaultID)
	}
	v, ok := value.(*Vault)
	if !ok {
		return nil, fmt.Errorf("%w: %s holds %T", ErrVaultNotFound, vaultID, value)
	}
	return v, nil
}

// Deposit credits a vault directly. Deposits need no approval.
func Deposit[C any, O intents.Outcome[O]](acct *account.Account[C, O], vaultID, coin string, amount uint64) error {
	v, err := Get(acct, vaultID)
	if err != nil {
		return err
	}
	v.Balances[coin] += amount
	return nil
}

// Withdraw debits a vault outside any intent. It fails with ErrObjectLocked
// while a pending spend intent has the vault reserved.
func Withdraw[C any, O intents.Outcome[O]](acct *account.Account[C, O], vaultID, coin string, amount uint64) error {
	if err := acct.AssertObjectNotLocked(vaultID); err != nil {
		return err
	}
	v, err := Get(acct, vaultID)
	if err != nil {
		return err
	}
	return debit(v, coin, amount)
}

// RequestSpend stages a spend intent and locks every referenced vault.
func RequestSpend[C any, O intents.Outcome[O]](acct *account.Account[C, O], params intents.Params, outcome O, spends ...SpendAction) (*intents.Intent[O], error) {
	au, err := acct.NewAuth(Witness{})
	if err != nil {
		return nil, err
	}
	intent, err := acct.CreateIntent(au, params, outcome, versionWitness(), Witness{}, "")
	if err != nil {
		return nil, err
	}
	vaultIDs := make([]string, 0, len(spends))
	seen := make(map[string]struct{})
	for _, spend := range spends {
		if _, err := Get(acct, spend.VaultID); err != nil {
			return nil, err
		}
		if err := intent.AddAction(Witness{}, spend); err != nil {
			return nil, err
		}
		if _, done := seen[spend.VaultID]; done {
			continue
		}
		seen[spend.VaultID] = struct{}{}
		vaultIDs = append(vaultIDs, spend.VaultID)
	}
	// A lock conflict must fail the request before the intent is staged.
	for _, id := range vaultIDs {
		if err := acct.AssertObjectNotLocked(id); err != nil {
			return nil, err
		}
	}
	if err := acct.AddIntent(intent, versionWitness(), Witness{}); err != nil {
		return nil, err
	}
	for _, id := range vaultIDs {
		if err := acct.LockObject(intent, id, versionWitness(), Witness{}); err != nil {
			return nil, err
		}
	}
	return intent, nil
}

// Transfer is the payout a spend execution produces.
type Transfer struct {
	Coin      string
	Amount    uint64
	Recipient string
}

// ExecuteSpend runs one scheduled execution of the spend intent under key,
// debiting each vault in action order. The caller has already checked the
// approval outcome.
func ExecuteSpend[C any, O intents.Outcome[O]](acct *account.Account[C, O], key string, now time.Time) ([]Transfer, O, error) {
	var zero O
	exec, outcome, err := acct.ExecuteIntent(key, now, versionWitness())
	if err != nil {
		return nil, zero, err
	}
	var transfers []Transfer
	for exec.Cursor() < exec.Total() {
		action, err := acct.ProcessAction(exec, versionWitness(), Witness{})
		if err != nil {
			return nil, zero, err
		}
		spend, ok := action.(SpendAction)
		if !ok {
			return nil, zero, fmt.Errorf("unexpected action %T in spend intent %q", action, key)
		}
		v, err := Get(acct, spend.VaultID)
		if err != nil {
			return nil, zero, err
		}
		if err := debit(v, spend.Coin, spend.Amount); err != nil {
			return nil, zero, err
		}
		transfers = append(transfers, Transfer{Coin: spend.Coin, Amount: spend.Amount, Recipient: spend.Recipient})
	}
	if err := acct.ConfirmExecution(exec, versionWitness(), Witness{}); err != nil {
		return nil, zero, err
	}
	return transfers, outcome, nil
}

// Cleanup drains this module's spend actions from an Expired token and
// unlocks the vaults they referenced.
func Cleanup[C any, O intents.Outcome[O]](acct *account.Account[C, O], expired *intents.Expired) error {
	if err := expired.Issuer().AssertIsConstructor(Witness{}); err != nil {
		return err
	}
	unlocked := make(map[string]struct{})
	for expired.Remaining() > 0 {
		spend, err := intents.RemoveAction[SpendAction](expired)
		if err != nil {
			return err
		}
		if _, done := unlocked[spend.VaultID]; done {
			continue
		}
		if err := acct.UnlockObject(expired, spend.VaultID, versionWitness(), Witness{}); err != nil {
			return err
		}
		unlocked[spend.VaultID] = struct{}{}
	}
	return nil
}

func debit(v *Vault, coin string, amount uint64) error {
	balance, ok := v.Balances[coin]
	if !ok {
		return fmt.Errorf("%w: %s in vault %s", ErrUnknownCoin, coin, v.Name)
	}
	if balance < amount {
		return fmt.Errorf("%w: %d %s in vault %s, need %d", ErrInsufficientFunds, balance, coin, v.Name, amount)
	}
	v.Balances[coin] = balance - amount
	return nil
}

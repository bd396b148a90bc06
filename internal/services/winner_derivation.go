package services

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// ErrDerivationFailed is returned when the random words could not be
// expanded into the required count of distinct ticket numbers within the
// attempt budget. The draw stays in progress and is retried on the next
// poll with the same randomness.
var ErrDerivationFailed = errors.New("winner derivation could not produce the required distinct count")

// derivationAttemptsPerWinner bounds the hash expansion so a defective draw
// surfaces as ErrDerivationFailed instead of spinning forever.
const derivationAttemptsPerWinner = 10000

// DeriveWinners expands the oracle's random words into exactly winnerCount
// distinct ticket numbers in [1, entries], returned in ascending order.
//
// The derivation is a pure function of (randomWords, winnerCount, entries):
// the words are hashed into a seed, the seed is expanded in counter mode
// with SHA-256, and each digest is reduced mod entries. Re-running it with
// the same inputs always reproduces the same winner set, which is what
// makes a draw auditable after the fact.
func DeriveWinners(randomWords []string, winnerCount int, entries int64) ([]int64, error) {
	if winnerCount <= 0 {
		return nil, fmt.Errorf("winner count must be positive, got %d", winnerCount)
	}
	if int64(winnerCount) > entries {
		return nil, fmt.Errorf("cannot draw %d winners from %d entries", winnerCount, entries)
	}
	if len(randomWords) == 0 {
		return nil, errors.New("no random words to derive winners from")
	}

	seed := sha256.Sum256([]byte(strings.Join(randomWords, ":")))
	mod := big.NewInt(entries)

	maxAttempts := derivationAttemptsPerWinner * winnerCount
	seen := make(map[int64]struct{}, winnerCount)
	winners := make([]int64, 0, winnerCount)

	var buf [sha256.Size + 8]byte
	copy(buf[:], seed[:])
	for attempt := 0; len(winners) < winnerCount; attempt++ {
		if attempt >= maxAttempts {
			return nil, ErrDerivationFailed
		}
		binary.BigEndian.PutUint64(buf[sha256.Size:], uint64(attempt))
		digest := sha256.Sum256(buf[:])

		n := new(big.Int).SetBytes(digest[:])
		number := n.Mod(n, mod).Int64() + 1

		if _, taken := seen[number]; taken {
			continue
		}
		seen[number] = struct{}{}
		winners = append(winners, number)
	}

	sort.Slice(winners, func(i, j int) bool { return winners[i] < winners[j] })
	return winners, nil
}

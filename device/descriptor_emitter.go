package device

import (
	"context"

	"github.com/crockeo/fightkey/pkg"
)

// DescriptorBankSize is the control endpoint's IN bank size in bytes.
// The emitter can never hand the HAL more than one bank's worth of data
// at a time (spec.md §4.2).
const DescriptorBankSize = 32

// MaxDescriptorResponseLength is the largest response the control
// endpoint will ever construct for a GET_DESCRIPTOR request, regardless
// of what the host's wLength asked for (spec.md §4.2).
const MaxDescriptorResponseLength = 255

// DescriptorWriteFunc transmits one IN bank's worth of descriptor bytes
// and blocks until the host has pulled it from the bank (or until ctx is
// cancelled). A cancelled ctx models the host aborting the data stage by
// issuing a new SETUP or OUT transaction mid-transfer; this HAL has no
// literal pollable RX-OUT flag to inspect between banks, so the control
// loop cancels ctx instead when it observes that condition (see
// DESIGN.md for the grounding of this substitution).
type DescriptorWriteFunc func(ctx context.Context, chunk []byte) error

// EmitDescriptor streams descriptor to the host in DescriptorBankSize
// chunks, calling write once per bank. It is a straight iterative loop,
// not recursion or a callback/pool abstraction: the emitter's entire
// state is the byte offset into descriptor (spec.md §9).
//
// The total byte count emitted is min(requestedLength,
// MaxDescriptorResponseLength, len(descriptor)), matching spec.md §4.2's
// truncation rule exactly. If write returns an error while ctx is
// cancelled, EmitDescriptor reports ErrHostAbortedDataStage rather than
// propagating the underlying cancellation error, so callers can
// distinguish a clean abort from a genuine HAL failure.
func EmitDescriptor(ctx context.Context, write DescriptorWriteFunc, descriptor []byte, requestedLength uint16) error {
	total := len(descriptor)
	if total > MaxDescriptorResponseLength {
		total = MaxDescriptorResponseLength
	}
	if int(requestedLength) < total {
		total = int(requestedLength)
	}

	for offset := 0; offset < total; offset += DescriptorBankSize {
		end := offset + DescriptorBankSize
		if end > total {
			end = total
		}

		if err := write(ctx, descriptor[offset:end]); err != nil {
			if ctx.Err() != nil {
				return pkg.ErrHostAbortedDataStage
			}
			return err
		}

		if err := ctx.Err(); err != nil {
			return pkg.ErrHostAbortedDataStage
		}
	}

	return nil
}

package svm

import (
	"encoding/binary"
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// SwigCompactInstruction is one instruction embedded in a Swig signV2
// payload. Indices reference the outer transaction's account key list.
type SwigCompactInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// IsSwigTransaction reports whether the transaction has the Swig
// smart-wallet layout: every instruction but the last is a compute budget or
// secp256r1 precompile instruction, and the last is a Swig signV2.
func IsSwigTransaction(tx *solana.Transaction) bool {
	instructions := tx.Message.Instructions
	if len(instructions) == 0 {
		return false
	}

	secp256r1 := solana.MustPublicKeyFromBase58(Secp256r1PrecompileAddress)
	swigProgram := solana.MustPublicKeyFromBase58(SwigProgramAddress)

	for i := 0; i < len(instructions)-1; i++ {
		if int(instructions[i].ProgramIDIndex) >= len(tx.Message.AccountKeys) {
			return false
		}
		programID := tx.Message.AccountKeys[instructions[i].ProgramIDIndex]
		if !programID.Equals(solana.ComputeBudget) && !programID.Equals(secp256r1) {
			return false
		}
	}

	last := instructions[len(instructions)-1]
	if int(last.ProgramIDIndex) >= len(tx.Message.AccountKeys) {
		return false
	}
	if !tx.Message.AccountKeys[last.ProgramIDIndex].Equals(swigProgram) {
		return false
	}
	if len(last.Data) < 2 {
		return false
	}
	return binary.LittleEndian.Uint16(last.Data[0:2]) == SwigSignV2Discriminator
}

// ParseSwigResult holds the flattened instruction list and the Swig wallet
// PDA that authorizes the inner instructions.
type ParseSwigResult struct {
	Instructions []solana.CompiledInstruction
	SwigPDA      string
}

// ParseSwigTransaction flattens a Swig transaction into the layout of a
// regular payment: outer compute budget instructions followed by the compact
// instructions embedded in the signV2 payload. Secp256r1 precompile
// instructions are dropped.
func ParseSwigTransaction(tx *solana.Transaction) (*ParseSwigResult, error) {
	instructions := tx.Message.Instructions
	if len(instructions) == 0 {
		return nil, errors.New("no instructions")
	}

	secp256r1 := solana.MustPublicKeyFromBase58(Secp256r1PrecompileAddress)

	var flattened []solana.CompiledInstruction
	for i := 0; i < len(instructions)-1; i++ {
		programID := tx.Message.AccountKeys[instructions[i].ProgramIDIndex]
		if !programID.Equals(secp256r1) {
			flattened = append(flattened, instructions[i])
		}
	}

	signV2 := instructions[len(instructions)-1]
	if len(signV2.Accounts) < 1 || int(signV2.Accounts[0]) >= len(tx.Message.AccountKeys) {
		return nil, errors.New("swig instruction missing wallet account")
	}
	swigPDA := tx.Message.AccountKeys[signV2.Accounts[0]].String()

	compact, err := decodeSwigCompactInstructions(signV2.Data)
	if err != nil {
		return nil, err
	}
	for _, instruction := range compact {
		accounts := make([]uint16, len(instruction.Accounts))
		for j, a := range instruction.Accounts {
			accounts[j] = uint16(a)
		}
		flattened = append(flattened, solana.CompiledInstruction{
			ProgramIDIndex: uint16(instruction.ProgramIDIndex),
			Accounts:       accounts,
			Data:           instruction.Data,
		})
	}

	return &ParseSwigResult{Instructions: flattened, SwigPDA: swigPDA}, nil
}

// decodeSwigCompactInstructions parses the compact instruction list embedded
// in a signV2 instruction payload.
//
// Payload layout:
//
//	[0..1]  discriminator          U16 LE
//	[2..3]  instructionPayloadLen  U16 LE
//	[4..7]  roleId                 U32 LE
//	[8..]   compact instructions   (instructionPayloadLen bytes)
//
// Each compact instruction:
//
//	[0]        programIDIndex  U8
//	[1]        numAccounts     U8
//	[2..N+1]   accounts        []U8
//	[N+2..N+3] dataLen         U16 LE
//	[N+4..]    data            raw bytes
func decodeSwigCompactInstructions(data []byte) ([]SwigCompactInstruction, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("swig instruction data too short: %d bytes", len(data))
	}

	payloadLen := int(binary.LittleEndian.Uint16(data[2:4]))
	start := 8
	if len(data) < start+payloadLen {
		return nil, fmt.Errorf("swig instruction data truncated: need %d bytes after offset %d, have %d",
			payloadLen, start, len(data)-start)
	}

	var results []SwigCompactInstruction
	offset := start
	end := start + payloadLen

	for offset < end {
		programIDIndex := data[offset]
		offset++

		if offset >= end {
			break
		}
		numAccounts := int(data[offset])
		offset++

		if offset+numAccounts > end {
			break
		}
		accounts := make([]uint8, numAccounts)
		copy(accounts, data[offset:offset+numAccounts])
		offset += numAccounts

		if offset+2 > end {
			break
		}
		dataLen := int(binary.LittleEndian.Uint16(data[offset : offset+2]))
		offset += 2

		if offset+dataLen > end {
			break
		}
		instructionData := make([]byte, dataLen)
		copy(instructionData, data[offset:offset+dataLen])
		offset += dataLen

		results = append(results, SwigCompactInstruction{
			ProgramIDIndex: programIDIndex,
			Accounts:       accounts,
			Data:           instructionData,
		})
	}

	return results, nil
}

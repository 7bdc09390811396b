package jobbuilder

import (
	"testing"

	"bubblemap-bypass/internal/program"
	"bubblemap-bypass/internal/runtime"
	"bubblemap-bypass/internal/types"
	"bubblemap-bypass/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func receipt(b byte, err error) *runtime.Receipt {
	var sig types.Signature
	for i := range sig {
		sig[i] = b + byte(i)
	}
	r := &runtime.Receipt{
		Signature:        sig,
		Slot:             10,
		InstructionIndex: -1,
		LogMessages:      []string{"Program log: Bypass executed"},
	}
	if err != nil {
		r.Status = runtime.StatusFailed
		r.InstructionIndex = 0
		r.Err = err
	}
	return r
}

func TestBuildReceiptKafkaJobs(t *testing.T) {
	receipts := []*runtime.Receipt{
		receipt(1, nil),
		receipt(2, nil),
		receipt(3, program.ErrInvalidContext),
	}

	jobs := BuildReceiptKafkaJobs(10, 1700000000, "receipts", 4, receipts)
	require.NotEmpty(t, jobs)

	total := 0
	for _, job := range jobs {
		assert.Equal(t, "receipts", job.Topic)
		assert.Less(t, job.Partition, int32(4))

		var msg structpb.Struct
		eventType, err := utils.DecodeEvent(job.Value, &msg)
		require.NoError(t, err)
		assert.Equal(t, EventTypeReceipts, eventType)
		assert.Equal(t, float64(10), msg.Fields["slot"].GetNumberValue())

		list := msg.Fields["receipts"].GetListValue().GetValues()
		total += len(list)
	}
	assert.Equal(t, len(receipts), total)
}

func TestBuildReceiptKafkaJobs_Empty(t *testing.T) {
	assert.Nil(t, BuildReceiptKafkaJobs(1, 0, "receipts", 2, nil))
}

func TestReceiptToMap(t *testing.T) {
	ok := ReceiptToMap(receipt(1, nil))
	assert.Equal(t, "success", ok["status"])
	assert.NotContains(t, ok, "error")

	failed := ReceiptToMap(receipt(2, program.ErrInvalidContext))
	assert.Equal(t, "failed", failed["status"])
	assert.Equal(t, uint32(program.CodeInvalidContext), failed["error_code"])

	// 必须能被 structpb 接受
	_, err := structpb.NewStruct(failed)
	assert.NoError(t, err)
}

package cloud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInstanceAPI struct {
	// counts is returned per call, last value repeating.
	counts []int
	err    error
	calls  int
}

func (f *fakeInstanceAPI) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls
	if idx >= len(f.counts) {
		idx = len(f.counts) - 1
	}
	f.calls++

	instances := make([]ec2types.Instance, f.counts[idx])
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: instances}},
	}, nil
}

func TestWaitForInstancesImmediate(t *testing.T) {
	api := &fakeInstanceAPI{counts: []int{2}}
	err := WaitForInstances(context.Background(), api, []string{"203.0.113.7", "203.0.113.10"}, time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls)
}

func TestWaitForInstancesEventually(t *testing.T) {
	api := &fakeInstanceAPI{counts: []int{0, 1, 2}}
	err := WaitForInstances(context.Background(), api, []string{"203.0.113.7", "203.0.113.10"}, time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, api.calls)
}

func TestWaitForInstancesTimeout(t *testing.T) {
	api := &fakeInstanceAPI{counts: []int{0}}
	err := WaitForInstances(context.Background(), api, []string{"203.0.113.7"}, 10*time.Millisecond, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestWaitForInstancesAPIError(t *testing.T) {
	api := &fakeInstanceAPI{err: errors.New("UnauthorizedOperation")}
	err := WaitForInstances(context.Background(), api, []string{"203.0.113.7"}, time.Second, time.Millisecond)
	require.Error(t, err)
}

func TestWaitForInstancesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	api := &fakeInstanceAPI{counts: []int{0}}
	err := WaitForInstances(ctx, api, []string{"203.0.113.7"}, time.Second, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

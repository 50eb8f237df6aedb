package link

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkErrorIs(t *testing.T) {
	err := &LinkError{State: StateDisconnected, Msg: "peer went away"}
	assert.True(t, errors.Is(err, ErrDisconnected))
	assert.False(t, errors.Is(err, ErrNotConnected))
	assert.Contains(t, err.Error(), "disconnected")
	assert.Contains(t, err.Error(), "peer went away")

	wrapped := errors.Join(errors.New("connect"), ErrNotConnected)
	assert.True(t, errors.Is(wrapped, ErrNotConnected))
}

func TestFakeLinkScanFilters(t *testing.T) {
	fake := NewFakeLink(
		Descriptor{Address: "aa:aa", Name: "ring-a", RSSI: -40},
		Descriptor{Address: "bb:bb", Name: "ring-b", RSSI: -70},
		Descriptor{Address: "cc:cc", Name: "ring-c", RSSI: -55},
	)

	collect := func(opts *ScanOptions) []string {
		var addrs []string
		err := fake.Scan(context.Background(), opts, func(d Descriptor) {
			addrs = append(addrs, d.Address)
		})
		require.NoError(t, err)
		return addrs
	}

	assert.Equal(t, []string{"aa:aa", "bb:bb", "cc:cc"}, collect(nil))
	assert.Equal(t, []string{"bb:bb"}, collect(&ScanOptions{AllowList: []string{"bb:bb"}}))
	assert.Equal(t, []string{"aa:aa", "cc:cc"}, collect(&ScanOptions{BlockList: []string{"bb:bb"}}))
}

func TestFakeLinkScanHonorsContext(t *testing.T) {
	fake := NewFakeLink(Descriptor{Address: "aa:aa"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := fake.Scan(ctx, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFakeLinkConnect(t *testing.T) {
	fake := NewFakeLink(Descriptor{Address: "aa:aa", Name: "ring-a"})

	_, err := fake.Connect(context.Background(), "zz:zz", nil)
	require.ErrorIs(t, err, ErrNotConnected)

	sess, err := fake.Connect(context.Background(), "aa:aa", nil)
	require.NoError(t, err)
	assert.Equal(t, "aa:aa", sess.Address())
	assert.Same(t, sess, fake.Session("aa:aa"))

	fake.FailConnect(ErrScanTimeout)
	_, err = fake.Connect(context.Background(), "aa:aa", nil)
	require.ErrorIs(t, err, ErrScanTimeout)
}

func TestFakeSessionDelivery(t *testing.T) {
	fake := NewFakeLink(Descriptor{Address: "aa:aa"})
	sess, err := fake.Connect(context.Background(), "aa:aa", nil)
	require.NoError(t, err)

	var frames []RawFrame
	// Mixed-case dashed UUID subscribes the same characteristic as "ff31".
	require.NoError(t, sess.Subscribe("0000FF31-0000-1000-8000-00805F9B34FB", func(f RawFrame) {
		frames = append(frames, f)
	}))

	fakeSess := fake.Session("aa:aa")
	assert.Equal(t, []string{"ff31"}, fakeSess.Subscribed())

	delivered := fakeSess.Inject("ff31", []byte{0x01})
	assert.Equal(t, 1, delivered)
	require.Len(t, frames, 1)
	assert.Equal(t, "ff31", frames[0].Characteristic)
	assert.Equal(t, []byte{0x01}, frames[0].Payload)

	// Unsubscribed characteristic reaches nobody.
	assert.Zero(t, fakeSess.Inject("ff99", []byte{0x01}))
	assert.Len(t, frames, 1)
}

func TestFakeSessionClose(t *testing.T) {
	fake := NewFakeLink(Descriptor{Address: "aa:aa"})
	sess, err := fake.Connect(context.Background(), "aa:aa", nil)
	require.NoError(t, err)

	select {
	case <-sess.Done():
		t.Fatal("Done closed before session ended")
	default:
	}

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close()) // idempotent

	select {
	case <-sess.Done():
	default:
		t.Fatal("Done not closed after Close")
	}

	require.ErrorIs(t, sess.Subscribe("ff31", func(RawFrame) {}), ErrDisconnected)
	assert.Zero(t, fake.Session("aa:aa").Inject("ff31", nil))
}

func TestFakeSessionDrop(t *testing.T) {
	fake := NewFakeLink(Descriptor{Address: "aa:aa"})
	sess, err := fake.Connect(context.Background(), "aa:aa", nil)
	require.NoError(t, err)

	fake.Session("aa:aa").Drop()
	select {
	case <-sess.Done():
	default:
		t.Fatal("Done not closed after Drop")
	}
}

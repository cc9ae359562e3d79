package debug_test

import (
	"testing"

	"libtock/drivers/debug"
	"libtock/kernel"
	"libtock/syscalls"

	"github.com/stretchr/testify/require"
)

func TestStatusCodeUsesSingleArgumentCommand(t *testing.T) {
	k := kernel.New(kernel.Config{})
	d := debug.New(syscalls.New(k))

	require.NoError(t, d.StatusCode(debug.StatusPanic))
	require.NoError(t, d.PrintNumber(3))
	require.NoError(t, d.PrintTwoNumbers(4, 5))

	require.Equal(t, []uint{debug.StatusPanic}, k.StatusCodes())
	calls := k.Calls()
	require.Len(t, calls, 3)
	require.Equal(t, kernel.OpCommand1, calls[0].Op)
	require.Equal(t, kernel.OpCommand, calls[1].Op)
	require.Equal(t, uint(5), calls[2].Arg2)
}

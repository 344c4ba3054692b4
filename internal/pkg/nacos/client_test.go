package nacos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerConfigs(t *testing.T) {
	cfgs, err := ParseServerConfigs("10.0.0.1:8848, 10.0.0.2:8849")
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.Equal(t, "10.0.0.1", cfgs[0].IpAddr)
	assert.Equal(t, uint64(8849), cfgs[1].Port)
}

func TestParseServerConfigs_Invalid(t *testing.T) {
	for _, in := range []string{"", "nohost", "host:abc", ":8848"} {
		_, err := ParseServerConfigs(in)
		assert.Error(t, err, in)
	}
}

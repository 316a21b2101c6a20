package ads

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	assert.Equal(t, "0x48 ADS1115 (ADDR to GND)", Describe(0x48))
	assert.Equal(t, "0x49 ADS1115 (ADDR to VDD)", Describe(AddrVDD))
	assert.Equal(t, "0x4A ADS1115 (ADDR to SDA)", Describe(AddrSDA))
	assert.Equal(t, "0x4B ADS1115 (ADDR to SCL)", Describe(0x4B))
	assert.Equal(t, "0x3C unknown device", Describe(0x3C))
}

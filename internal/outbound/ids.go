package outbound

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"

	"github.com/sony/sonyflake/v2"
)

// idGenerator 任务与批次标识生成器。
//
// Sonyflake 保证跨实例唯一且趋势递增，base36 编码后紧凑可读。
type idGenerator struct {
	sf *sonyflake.Sonyflake
}

func newIDGenerator() (*idGenerator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{})
	if err != nil {
		// 无私网地址的环境（公网直连主机、部分容器网络）取不到默认
		// machine-id，回退到主机名哈希
		sf, err = sonyflake.New(sonyflake.Settings{MachineID: hostMachineID})
	}
	if err != nil {
		return nil, fmt.Errorf("outbound: init id generator: %w", err)
	}
	return &idGenerator{sf: sf}, nil
}

// hostMachineID 主机名哈希的低 16 位。
func hostMachineID() (int, error) {
	name, err := os.Hostname()
	if err != nil {
		return 0, fmt.Errorf("outbound: resolve hostname: %w", err)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int(h.Sum32() & 0xffff), nil
}

func (g *idGenerator) next(prefix string) (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", fmt.Errorf("outbound: generate id: %w", err)
	}
	return prefix + strconv.FormatInt(id, 36), nil
}

// JobID 生成任务标识。
func (g *idGenerator) JobID() (string, error) { return g.next("job-") }

// BatchID 生成批次标识。
func (g *idGenerator) BatchID() (string, error) { return g.next("batch-") }

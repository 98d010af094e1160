package session

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/betbot/statusdash/pkg/config"
	"github.com/betbot/statusdash/pkg/persistence"
)

const (
	storePrefix = "session"
	storeID     = "default"
	// StoreKey 本地保存 user_id 的 key
	StoreKey = "user_id"
)

// OpenStore 按配置打开持久化服务，返回 user_id 所在的 Store 和需要在退出时关闭的 Service
func OpenStore(cfg config.SessionConfig) (persistence.Store, persistence.Service, error) {
	var svc persistence.Service
	switch cfg.Store {
	case config.StoreBadger:
		key, err := persistence.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, nil, errors.Wrap(err, "解析 session 加密密钥失败")
		}
		bs, err := persistence.OpenBadger(persistence.BadgerOptions{
			Path:          filepath.Join(cfg.Dir, "badger"),
			EncryptionKey: key,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "打开 badger session 存储失败")
		}
		svc = bs
	case config.StoreJSON, "":
		svc = persistence.NewJSONFileService(cfg.Dir)
	default:
		return nil, nil, errors.Errorf("unsupported session store: %q", cfg.Store)
	}
	return svc.NewStore(storePrefix, storeID, StoreKey), svc, nil
}

package price

import "chatpay/internal/registry"

type Registry interface {
	Networks() []registry.NetworkInfo
}

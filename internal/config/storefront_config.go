package config

import "time"

type StorefrontConfig interface {
	GetNotificationTTL() time.Duration
}

type Storefront struct{}

var _ StorefrontConfig = Storefront{}

func (Storefront) GetNotificationTTL() time.Duration {
	return 3500 * time.Millisecond
}

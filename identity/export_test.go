package identity

import "context"

func (a *KakaoAdapter) Initializations() int {
	return int(a.initializations.Load())
}

func (b *base) LoadSDK(ctx context.Context) error {
	_, err := b.sdk(ctx)
	return err
}

// pkg/entity/renderer.go
package entity

// Renderer draws game entities from their synced poses
type Renderer interface {
	RenderBarrel(barrel *Barrel)
	RenderCannonball(ball *Cannonball)
	RenderCannon(cannon *Cannon)
	Clear()
	Present()
}

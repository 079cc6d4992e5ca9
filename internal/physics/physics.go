// Package physics is a small Box2D-v3-shaped façade over a real 2D rigid
// body engine (github.com/ByteArena/box2d, a pure-Go Box2D port). It is the
// sole external-physics collaborator's concrete binding, translating a
// handle/event/query vocabulary (World/BodyID/ShapeID, ApplyLinearImpulse,
// OverlapAABB, CastRayClosest, GetBodyEvents/ContactEvents/SensorEvents,
// ShapeDistance, weld joints) onto ByteArena/box2d's body/fixture/contact-
// listener API. Nothing above this package ever imports box2d directly.
package physics

import (
	"math"

	"github.com/ByteArena/box2d"

	"github.com/pthm-cable/dronearena/internal/mathutil"
)

// BodyType mirrors Box2D's body-type enum.
type BodyType uint8

const (
	BodyStatic BodyType = iota
	BodyKinematic
	BodyDynamic
)

// Filter is a category/mask/group collision filter, applied per shape.
type Filter struct {
	Category uint16
	Mask     uint16
	Group    int16
}

// BodyID is a non-owning handle into the world's body table.
type BodyID struct{ body *box2d.B2Body }

// Valid reports whether the handle refers to a live body.
func (b BodyID) Valid() bool { return b.body != nil }

// ShapeID is a non-owning handle into the world's fixture table.
type ShapeID struct{ fixture *box2d.B2Fixture }

// Valid reports whether the handle refers to a live shape.
func (s ShapeID) Valid() bool { return s.fixture != nil }

// UserData returns the tagged back-reference stored on shape creation: a
// single (tag, handle) pair living on the physics body/shape's userdata
// slot.
func (s ShapeID) UserData() any {
	if s.fixture == nil {
		return nil
	}
	return s.fixture.GetUserData()
}

// BodyDef configures a body at creation time.
type BodyDef struct {
	Type           BodyType
	Position       mathutil.Vec2
	Angle          float32
	LinearVelocity mathutil.Vec2
	LinearDamping  float32
	AngularDamping float32
	FixedRotation  bool
	Bullet         bool
	CanSleep       bool
}

// ShapeDef configures a shape at creation time.
type ShapeDef struct {
	Density              float32
	Friction             float32
	Restitution          float32
	IsSensor             bool
	Filter               Filter
	EnableContactEvents  bool
	EnableSensorEvents   bool
	UserData             any
}

// CircleGeom is a circle shape definition, local to the owning body.
type CircleGeom struct {
	Center mathutil.Vec2
	Radius float32
}

// BoxGeom is an axis-aligned (pre-rotation) box shape definition.
type BoxGeom struct {
	HalfWidth, HalfHeight float32
}

// RayResult is the outcome of a closest-hit ray cast.
type RayResult struct {
	Hit      bool
	Shape    ShapeID
	Point    mathutil.Vec2
	Normal   mathutil.Vec2
	Fraction float32
}

// BodyMoveEvent reports a body transform changed during the last Step.
type BodyMoveEvent struct {
	Body     BodyID
	Position mathutil.Vec2
	Angle    float32
}

// Manifold carries the contact point/normal for a begin-touch event.
type Manifold struct {
	Point  mathutil.Vec2
	Normal mathutil.Vec2
}

// ContactEvent reports two non-sensor shapes starting or ending contact.
type ContactEvent struct {
	ShapeA, ShapeB ShapeID
	Manifold       Manifold
}

// SensorEvent reports a sensor shape gaining or losing an overlapping visitor.
type SensorEvent struct {
	Sensor, Visitor ShapeID
}

// World owns the rigid body simulation and the event queues drained once per
// substep by the step orchestrator.
type World struct {
	b2       box2d.B2World
	listener *contactListener

	bodyEvents    []BodyMoveEvent
	contactBegin  []ContactEvent
	contactEnd    []ContactEvent
	sensorBegin   []SensorEvent
	sensorEnd     []SensorEvent

	trackedBodies []*box2d.B2Body
}

type contactListener struct {
	w *World
}

func isSensorFixture(f *box2d.B2Fixture) bool { return f != nil && f.IsSensor() }

func (l *contactListener) BeginContact(contact box2d.B2ContactInterface) {
	fa, fb := contact.GetFixtureA(), contact.GetFixtureB()
	if isSensorFixture(fa) || isSensorFixture(fb) {
		sensor, visitor := fa, fb
		if isSensorFixture(fb) {
			sensor, visitor = fb, fa
		}
		l.w.sensorBegin = append(l.w.sensorBegin, SensorEvent{
			Sensor:  ShapeID{sensor},
			Visitor: ShapeID{visitor},
		})
		return
	}

	var manifold Manifold
	wm := box2d.NewB2WorldManifold()
	wm.Initialize(contact.GetManifold(), fa.GetBody().GetTransform(), fa.GetShape().M_radius,
		fb.GetBody().GetTransform(), fb.GetShape().M_radius)
	if wm.PointCount > 0 {
		manifold.Point = mathutil.Vec2{X: float32(wm.Points[0].X), Y: float32(wm.Points[0].Y)}
		manifold.Normal = mathutil.Vec2{X: float32(wm.Normal.X), Y: float32(wm.Normal.Y)}
	}
	l.w.contactBegin = append(l.w.contactBegin, ContactEvent{
		ShapeA: ShapeID{fa}, ShapeB: ShapeID{fb}, Manifold: manifold,
	})
}

func (l *contactListener) EndContact(contact box2d.B2ContactInterface) {
	fa, fb := contact.GetFixtureA(), contact.GetFixtureB()
	if isSensorFixture(fa) || isSensorFixture(fb) {
		sensor, visitor := fa, fb
		if isSensorFixture(fb) {
			sensor, visitor = fb, fa
		}
		l.w.sensorEnd = append(l.w.sensorEnd, SensorEvent{Sensor: ShapeID{sensor}, Visitor: ShapeID{visitor}})
		return
	}
	l.w.contactEnd = append(l.w.contactEnd, ContactEvent{ShapeA: ShapeID{fa}, ShapeB: ShapeID{fb}})
}

func (l *contactListener) PreSolve(contact box2d.B2ContactInterface, oldManifold box2d.B2Manifold) {}
func (l *contactListener) PostSolve(contact box2d.B2ContactInterface, impulse *box2d.B2ContactImpulse) {
}

// CreateWorld allocates a new world with the given gravity (the arena uses
// zero gravity: drones and projectiles are thrust-driven, not falling
// bodies).
func CreateWorld(gravity mathutil.Vec2) *World {
	w := &World{b2: box2d.MakeB2World(box2d.B2Vec2{X: float64(gravity.X), Y: float64(gravity.Y)})}
	w.listener = &contactListener{w: w}
	w.b2.SetContactListener(w.listener)
	return w
}

func toB2Vec(v mathutil.Vec2) box2d.B2Vec2 { return box2d.B2Vec2{X: float64(v.X), Y: float64(v.Y)} }
func fromB2Vec(v box2d.B2Vec2) mathutil.Vec2 {
	return mathutil.Vec2{X: float32(v.X), Y: float32(v.Y)}
}

// CreateBody creates a body and registers it for move-event tracking.
func (w *World) CreateBody(def BodyDef) BodyID {
	bd := box2d.MakeB2BodyDef()
	switch def.Type {
	case BodyStatic:
		bd.Type = box2d.B2BodyType.B2_staticBody
	case BodyKinematic:
		bd.Type = box2d.B2BodyType.B2_kinematicBody
	default:
		bd.Type = box2d.B2BodyType.B2_dynamicBody
	}
	bd.Position = toB2Vec(def.Position)
	bd.Angle = float64(def.Angle)
	bd.LinearVelocity = toB2Vec(def.LinearVelocity)
	bd.LinearDamping = float64(def.LinearDamping)
	bd.AngularDamping = float64(def.AngularDamping)
	bd.FixedRotation = def.FixedRotation
	bd.Bullet = def.Bullet
	bd.AllowSleep = def.CanSleep

	body := w.b2.CreateBody(&bd)
	w.trackedBodies = append(w.trackedBodies, body)
	return BodyID{body}
}

// DestroyBody destroys a body and all its shapes.
func (w *World) DestroyBody(b BodyID) {
	if !b.Valid() {
		return
	}
	for i, tb := range w.trackedBodies {
		if tb == b.body {
			w.trackedBodies = append(w.trackedBodies[:i], w.trackedBodies[i+1:]...)
			break
		}
	}
	w.b2.DestroyBody(b.body)
}

func applyFixtureDef(fd *box2d.B2FixtureDef, def ShapeDef) {
	fd.Density = float64(def.Density)
	fd.Friction = float64(def.Friction)
	fd.Restitution = float64(def.Restitution)
	fd.IsSensor = def.IsSensor
	fd.Filter.CategoryBits = uint16(def.Filter.Category)
	fd.Filter.MaskBits = uint16(def.Filter.Mask)
	fd.Filter.GroupIndex = int16(def.Filter.Group)
	fd.UserData = def.UserData
}

// CreateCircleShape attaches a circle fixture to a body.
func (w *World) CreateCircleShape(b BodyID, def ShapeDef, geom CircleGeom) ShapeID {
	shape := box2d.NewB2CircleShape()
	shape.M_radius = float64(geom.Radius)
	shape.M_p = toB2Vec(geom.Center)

	fd := box2d.MakeB2FixtureDef()
	fd.Shape = shape
	applyFixtureDef(&fd, def)

	return ShapeID{b.body.CreateFixtureFromDef(&fd)}
}

// CreateBoxShape attaches a box fixture (grid walls, floating walls) to a body.
func (w *World) CreateBoxShape(b BodyID, def ShapeDef, geom BoxGeom) ShapeID {
	shape := box2d.NewB2PolygonShape()
	shape.SetAsBox(float64(geom.HalfWidth), float64(geom.HalfHeight))

	fd := box2d.MakeB2FixtureDef()
	fd.Shape = shape
	applyFixtureDef(&fd, def)

	return ShapeID{b.body.CreateFixtureFromDef(&fd)}
}

// DestroyShape removes a single fixture from its owning body.
func (w *World) DestroyShape(b BodyID, s ShapeID) {
	if b.Valid() && s.Valid() {
		b.body.DestroyFixture(s.fixture)
	}
}

// ApplyLinearImpulse applies an impulse at the body's center of mass.
func (w *World) ApplyLinearImpulse(b BodyID, impulse mathutil.Vec2, wake bool) {
	if b.Valid() {
		b.body.ApplyLinearImpulseToCenter(toB2Vec(impulse), wake)
	}
}

// ApplyForce applies a continuous force at the body's center of mass.
func (w *World) ApplyForce(b BodyID, force mathutil.Vec2) {
	if b.Valid() {
		b.body.ApplyForceToCenter(toB2Vec(force), true)
	}
}

// ApplyAngularImpulse applies an angular impulse (used by floating walls hit
// by an explosion, to impart spin alongside the linear impulse).
func (w *World) ApplyAngularImpulse(b BodyID, impulse float32) {
	if b.Valid() {
		b.body.ApplyAngularImpulse(float64(impulse), true)
	}
}

// SetTransform teleports a body.
func (w *World) SetTransform(b BodyID, pos mathutil.Vec2, angle float32) {
	if b.Valid() {
		b.body.SetTransform(toB2Vec(pos), float64(angle))
	}
}

// SetLinearVelocity overrides a body's velocity (used to neutralize
// restitution drift in projectile end-contact handling).
func (w *World) SetLinearVelocity(b BodyID, v mathutil.Vec2) {
	if b.Valid() {
		b.body.SetLinearVelocity(toB2Vec(v))
	}
}

// SetLinearDamping changes a body's linear damping (drone brake state).
func (w *World) SetLinearDamping(b BodyID, d float32) {
	if b.Valid() {
		b.body.SetLinearDamping(float64(d))
	}
}

// Position returns a body's current world position.
func (w *World) Position(b BodyID) mathutil.Vec2 {
	if !b.Valid() {
		return mathutil.Vec2{}
	}
	return fromB2Vec(b.body.GetPosition())
}

// Angle returns a body's current rotation in radians.
func (w *World) Angle(b BodyID) float32 {
	if !b.Valid() {
		return 0
	}
	return float32(b.body.GetAngle())
}

// LinearVelocity returns a body's current linear velocity.
func (w *World) LinearVelocity(b BodyID) mathutil.Vec2 {
	if !b.Valid() {
		return mathutil.Vec2{}
	}
	return fromB2Vec(b.body.GetLinearVelocity())
}

// Step advances the world by dt, internally subdivided into the given
// number of solver substeps, and records a BodyMoveEvent for every tracked
// body so the orchestrator can reconcile cached positions without
// re-querying the world per entity.
func (w *World) Step(dt float32, substeps int) {
	if substeps < 1 {
		substeps = 1
	}
	sub := dt / float32(substeps)
	for i := 0; i < substeps; i++ {
		w.b2.Step(float64(sub), 8, 3)
	}
	for _, b := range w.trackedBodies {
		w.bodyEvents = append(w.bodyEvents, BodyMoveEvent{
			Body:     BodyID{b},
			Position: fromB2Vec(b.GetPosition()),
			Angle:    float32(b.GetAngle()),
		})
	}
}

// aabbQuery adapts a Go closure to box2d's QueryCallback interface.
type aabbQuery struct {
	fn func(ShapeID) bool
}

func (q *aabbQuery) ReportFixture(fixture *box2d.B2Fixture) bool {
	return q.fn(ShapeID{fixture})
}

// OverlapAABB invokes fn for every shape whose fattened AABB overlaps the
// given box; fn returns false to stop early. Used by the explosion engine's
// broadphase pass and by OverlapCircle.
func (w *World) OverlapAABB(lower, upper mathutil.Vec2, fn func(ShapeID) bool) {
	aabb := box2d.MakeB2AABB()
	aabb.LowerBound = toB2Vec(lower)
	aabb.UpperBound = toB2Vec(upper)
	w.b2.QueryAABB(&aabbQuery{fn: fn}, aabb)
}

// OverlapCircle invokes fn for every shape found by AABB-querying the
// circle's bounding box whose body position lies within radius of center.
func (w *World) OverlapCircle(center mathutil.Vec2, radius float32, fn func(ShapeID) bool) {
	lower := mathutil.Vec2{X: center.X - radius, Y: center.Y - radius}
	upper := mathutil.Vec2{X: center.X + radius, Y: center.Y + radius}
	rsq := radius * radius
	keepGoing := true
	w.OverlapAABB(lower, upper, func(s ShapeID) bool {
		if !keepGoing {
			return false
		}
		body := s.fixture.GetBody()
		p := fromB2Vec(body.GetPosition())
		if mathutil.DistanceSq(p, center) > rsq {
			return true
		}
		if !fn(s) {
			keepGoing = false
			return false
		}
		return true
	})
}

// rayCastClosest adapts a Go closure to box2d's RayCastCallback interface,
// tracking the closest hit.
type rayCastClosest struct {
	result RayResult
	found  bool
}

func (r *rayCastClosest) ReportFixture(fixture *box2d.B2Fixture, point box2d.B2Vec2, normal box2d.B2Vec2, fraction float64) float64 {
	r.found = true
	r.result = RayResult{
		Hit:      true,
		Shape:    ShapeID{fixture},
		Point:    fromB2Vec(point),
		Normal:   fromB2Vec(normal),
		Fraction: float32(fraction),
	}
	return fraction
}

// CastRayClosest casts a ray from p1 to p2 and returns the closest hit, if
// any. Used for projectile spawn-point wall-surface correction and
// line-of-sight checks.
func (w *World) CastRayClosest(p1, p2 mathutil.Vec2) RayResult {
	cb := &rayCastClosest{}
	w.b2.RayCast(cb, toB2Vec(p1), toB2Vec(p2))
	return cb.result
}

// ShapeDistance returns the closest points between two shapes and the
// distance between them, using box2d's GJK distance solver.
func (w *World) ShapeDistance(a, b ShapeID) (pointOnA, pointOnB mathutil.Vec2, dist float32) {
	input := box2d.MakeB2DistanceInput()
	input.ProxyA.Set(a.fixture.GetShape(), 0)
	input.ProxyB.Set(b.fixture.GetShape(), 0)
	input.TransformA = a.fixture.GetBody().GetTransform()
	input.TransformB = b.fixture.GetBody().GetTransform()
	input.UseRadii = true

	cache := box2d.MakeB2SimplexCache()
	output := box2d.MakeB2DistanceOutput()
	box2d.B2Distance(&output, &cache, &input)

	return fromB2Vec(output.PointA), fromB2Vec(output.PointB), float32(output.Distance)
}

// JointID is a non-owning handle to a weld joint.
type JointID struct{ joint *box2d.B2WeldJoint }

// Valid reports whether the handle refers to a live joint.
func (j JointID) Valid() bool { return j.joint != nil }

// CreateWeldJoint welds two bodies together at a world-space anchor point
// (a projectile mine sticking to a wall). Returns a handle used only to
// destroy the joint again; a mine has at most one.
func (w *World) CreateWeldJoint(bodyA, bodyB BodyID, anchor mathutil.Vec2) JointID {
	jd := box2d.MakeB2WeldJointDef()
	jd.Initialize(bodyA.body, bodyB.body, toB2Vec(anchor))
	return JointID{w.b2.CreateJoint(&jd).(*box2d.B2WeldJoint)}
}

// DestroyWeldJoint removes a previously created weld joint.
func (w *World) DestroyWeldJoint(j JointID) {
	if j.Valid() {
		w.b2.DestroyJoint(j.joint)
	}
}

// SetShapeUserData updates the tagged back-reference stored on a shape. Used
// right after an entity's store record is created, so the physics-side
// handle resolves to that record.
func (w *World) SetShapeUserData(s ShapeID, data any) {
	if s.Valid() {
		s.fixture.SetUserData(data)
	}
}

// DrainBodyEvents returns and clears the move events recorded by the last
// Step call.
func (w *World) DrainBodyEvents() []BodyMoveEvent {
	ev := w.bodyEvents
	w.bodyEvents = w.bodyEvents[:0]
	return ev
}

// DrainContactBeginEvents returns and clears begin-touch events for
// non-sensor shape pairs.
func (w *World) DrainContactBeginEvents() []ContactEvent {
	ev := w.contactBegin
	w.contactBegin = w.contactBegin[:0]
	return ev
}

// DrainContactEndEvents returns and clears end-touch events for non-sensor
// shape pairs.
func (w *World) DrainContactEndEvents() []ContactEvent {
	ev := w.contactEnd
	w.contactEnd = w.contactEnd[:0]
	return ev
}

// DrainSensorBeginEvents returns and clears begin-touch events involving at
// least one sensor shape.
func (w *World) DrainSensorBeginEvents() []SensorEvent {
	ev := w.sensorBegin
	w.sensorBegin = w.sensorBegin[:0]
	return ev
}

// DrainSensorEndEvents returns and clears end-touch events involving at
// least one sensor shape.
func (w *World) DrainSensorEndEvents() []SensorEvent {
	ev := w.sensorEnd
	w.sensorEnd = w.sensorEnd[:0]
	return ev
}

// ClampFinite guards against NaN/Inf escaping the solver into game state:
// out-of-bounds or NaN transforms are caught here rather than propagated.
func ClampFinite(v mathutil.Vec2) mathutil.Vec2 {
	if math.IsNaN(float64(v.X)) || math.IsInf(float64(v.X), 0) {
		v.X = 0
	}
	if math.IsNaN(float64(v.Y)) || math.IsInf(float64(v.Y), 0) {
		v.Y = 0
	}
	return v
}

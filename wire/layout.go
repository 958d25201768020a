package wire

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers of the packet layout. Every record is written in ascending
// field order; repeated fields repeat their tag per item.
//
//	Packet
//	  1 routing       { 1: user{1: peer} | 2: group{1: peer} }
//	  2 content head  { 1: 1, 2: 0, 3: 0 }
//	  3 body          { 1: rich text { 2: element... } }
//	  4 sequence
//	  5 random nonce
const (
	packetRouting     protowire.Number = 1
	packetContentHead protowire.Number = 2
	packetBody        protowire.Number = 3
	packetSequence    protowire.Number = 4
	packetRandom      protowire.Number = 5

	routingUser  protowire.Number = 1
	routingGroup protowire.Number = 2
	routingPeer  protowire.Number = 1

	headPkgNum   protowire.Number = 1
	headPkgIndex protowire.Number = 2
	headDivSeq   protowire.Number = 3

	bodyRichText  protowire.Number = 1
	richTextElems protowire.Number = 2
)

// Content head values for a single-part message.
const (
	headPkgNumValue   = 1
	headPkgIndexValue = 0
	headDivSeqValue   = 0
)

// Element framing.
//
//	text      { 1: { 1: content } }
//	keyboard  { 53: { 1: 46, 2: { 1: { 1: row..., 2: bot app id } }, 3: 1 } }
const (
	elemText   protowire.Number = 1
	textString protowire.Number = 1

	elemCommon         protowire.Number = 53
	commonServiceType  protowire.Number = 1
	commonPbElem       protowire.Number = 2
	commonBusinessType protowire.Number = 3

	pbElemKeyboard   protowire.Number = 1
	keyboardRows     protowire.Number = 1
	keyboardBotAppID protowire.Number = 2

	rowButtons protowire.Number = 1

	buttonID     protowire.Number = 1
	buttonRender protowire.Number = 2
	buttonAction protowire.Number = 3

	renderLabel        protowire.Number = 1
	renderVisitedLabel protowire.Number = 2
	renderStyle        protowire.Number = 3

	actionType           protowire.Number = 1
	actionPermission     protowire.Number = 2
	actionUnsupportedTip protowire.Number = 4
	actionData           protowire.Number = 5
	actionReply          protowire.Number = 7
	actionEnter          protowire.Number = 8

	permissionKind    protowire.Number = 1
	permissionRoleIDs protowire.Number = 2
	permissionUserIDs protowire.Number = 3
)

const (
	serviceTypeKeyboard  = 46
	businessTypeKeyboard = 1
	botAppID             = "1145140000"
)

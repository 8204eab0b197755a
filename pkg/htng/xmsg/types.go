package xmsg

// MessageType 消息类型
//
// 对应 HTNG 2011B 子集中的出入站消息族。RESPONSE 仅用于入站应答，
// UNKNOWN 表示无法识别的 Body 根元素。
type MessageType string

const (
	// TypeInventory 库存同步（OTA_HotelInvCountNotifRQ）
	TypeInventory MessageType = "INVENTORY"

	// TypeRates 房价同步（OTA_HotelRateNotifRQ）
	TypeRates MessageType = "RATES"

	// TypeReservation 预订通知（OTA_HotelResNotifRQ）
	TypeReservation MessageType = "RESERVATION"

	// TypeRestrictions 可售限制（OTA_HotelAvailNotifRQ）
	TypeRestrictions MessageType = "RESTRICTIONS"

	// TypeGroupBlock 团队房块（OTA_HotelInvBlockNotifRQ）
	TypeGroupBlock MessageType = "GROUP_BLOCK"

	// TypeResponse 对端应答
	TypeResponse MessageType = "RESPONSE"

	// TypeUnknown 无法识别的消息
	TypeUnknown MessageType = "UNKNOWN"
)

// BusinessTypes 返回需要非空 hotel-code 的业务消息类型集合。
func BusinessTypes() []MessageType {
	return []MessageType{TypeInventory, TypeRates, TypeReservation, TypeRestrictions, TypeGroupBlock}
}

// IsBusiness 判断是否为业务消息类型（要求非空 hotel-code）。
func (t MessageType) IsBusiness() bool {
	switch t {
	case TypeInventory, TypeRates, TypeReservation, TypeRestrictions, TypeGroupBlock:
		return true
	default:
		return false
	}
}

// Valid 判断消息类型是否为已识别值。
func (t MessageType) Valid() bool {
	return t.IsBusiness() || t == TypeResponse || t == TypeUnknown
}

func (t MessageType) String() string { return string(t) }

// Direction 消息方向
type Direction string

const (
	// DirectionOutbound 出站（PMS → CRS）
	DirectionOutbound Direction = "OUTBOUND"

	// DirectionInbound 入站（CRS → PMS）
	DirectionInbound Direction = "INBOUND"
)

func (d Direction) String() string { return string(d) }

// CountType 库存计数类型
//
// 取值来自 OTA CountType 代码表，数值与线上协议一致，不可调整。
type CountType int

const (
	// CountPhysical 物理房量
	CountPhysical CountType = 1

	// CountAvailable 可售房量（直接法）
	CountAvailable CountType = 2

	// CountDefiniteSold 确定已售（计算法）
	CountDefiniteSold CountType = 4

	// CountTentativeSold 暂定已售（计算法）
	CountTentativeSold CountType = 5

	// CountOutOfOrder 维修房（计算法）
	CountOutOfOrder CountType = 6

	// CountOversell 超售额度
	CountOversell CountType = 99
)

// Valid 判断计数类型是否为已识别值。
func (c CountType) Valid() bool {
	switch c {
	case CountPhysical, CountAvailable, CountDefiniteSold, CountTentativeSold, CountOutOfOrder, CountOversell:
		return true
	default:
		return false
	}
}

// CalculatedCountTypes 计算法要求的计数类型集合 {4,5,6}。
func CalculatedCountTypes() []CountType {
	return []CountType{CountDefiniteSold, CountTentativeSold, CountOutOfOrder}
}

// ReservationType 预订类型
type ReservationType string

const (
	ReservationTransient        ReservationType = "TRANSIENT"
	ReservationTravelAgency     ReservationType = "TRAVEL_AGENCY"
	ReservationCorporate        ReservationType = "CORPORATE"
	ReservationPackage          ReservationType = "PACKAGE"
	ReservationGroup            ReservationType = "GROUP"
	ReservationAlternatePayment ReservationType = "ALTERNATE_PAYMENT"
)

// Valid 判断预订类型是否为已识别值。
func (r ReservationType) Valid() bool {
	switch r {
	case ReservationTransient, ReservationTravelAgency, ReservationCorporate,
		ReservationPackage, ReservationGroup, ReservationAlternatePayment:
		return true
	default:
		return false
	}
}

// TransactionType 预订事务类型
type TransactionType string

const (
	TransactionNew    TransactionType = "NEW"
	TransactionModify TransactionType = "MODIFY"
	TransactionCancel TransactionType = "CANCEL"
)

// Valid 判断事务类型是否为已识别值。
func (t TransactionType) Valid() bool {
	return t == TransactionNew || t == TransactionModify || t == TransactionCancel
}

// RateOperation 房价操作类型
type RateOperation string

const (
	RateOpUpdate          RateOperation = "RATE_UPDATE"
	RateOpCreation        RateOperation = "RATE_CREATION"
	RateOpFullSync        RateOperation = "FULL_SYNC"
	RateOpDeltaUpdate     RateOperation = "DELTA_UPDATE"
	RateOpInactive        RateOperation = "INACTIVE"
	RateOpRemoveRoomTypes RateOperation = "REMOVE_ROOM_TYPES"
)

// Valid 判断房价操作是否为已识别值。
func (o RateOperation) Valid() bool {
	switch o {
	case RateOpUpdate, RateOpCreation, RateOpFullSync, RateOpDeltaUpdate, RateOpInactive, RateOpRemoveRoomTypes:
		return true
	default:
		return false
	}
}

// ConfigScope 配置缓存作用域
//
// 各作用域对应不同的缓存 TTL：GLOBAL 最长，CACHE 最短。
type ConfigScope string

const (
	ScopeGlobal      ConfigScope = "GLOBAL"
	ScopeProperty    ConfigScope = "PROPERTY"
	ScopeCredentials ConfigScope = "CREDENTIALS"
	ScopeCache       ConfigScope = "CACHE"
)

// Environment 对接环境
type Environment string

const (
	EnvProduction Environment = "production"
	EnvTest       Environment = "test"
)

// Valid 判断环境是否为已识别值。
func (e Environment) Valid() bool {
	return e == EnvProduction || e == EnvTest
}

package services

import "errors"

// Ошибки домена. Сервисы оборачивают их через fmt.Errorf("%w: ..."),
// контроллеры сопоставляют их с HTTP статусами через errors.Is.
var (
	ErrInsufficientFunds  = errors.New("недостаточно средств")
	ErrInvalidAmount      = errors.New("неверная сумма")
	ErrNotFound           = errors.New("не найдено")
	ErrInvalidDirection   = errors.New("неверное направление перевода")
	ErrInvalidMode        = errors.New("неверный режим разделения")
	ErrMissingDrainTarget = errors.New("не указан счет для возврата остатка копилки")
	ErrInvalidInput       = errors.New("неверные данные запроса")
	ErrInvalidStatus      = errors.New("неверный статус уведомления")
	ErrConflict           = errors.New("запись уже существует")
	ErrSameAccount        = errors.New("нельзя перевести средства самому себе")
	ErrCurrencyMismatch   = errors.New("валюты счетов не совпадают")
	ErrEmptyGroup         = errors.New("в группе нет участников")
)
